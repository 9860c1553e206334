package repository

import (
	"context"
	"time"

	"github.com/meverapp/media-gateway/internal/models"
	"github.com/meverapp/media-gateway/internal/storage"
)

type UsageRepository struct {
	db *storage.Postgres
}

func NewUsageRepository(db *storage.Postgres) *UsageRepository {
	return &UsageRepository{db: db}
}

// Inserts multiple usage records (for batch insertion)
func (r *UsageRepository) CreateBatch(ctx context.Context, records []models.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}

	return r.db.DB.WithContext(ctx).Create(&records).Error
}

// Counts records in a time range
func (r *UsageRepository) CountByTimeRange(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64

	err := r.db.DB.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Count(&count).Error

	return count, err
}

// Counts records whose status falls in [min, max]
func (r *UsageRepository) CountByStatusCodeRange(ctx context.Context, min, max int, from, to time.Time) (int64, error) {
	var count int64

	err := r.db.DB.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Where("status_code BETWEEN ? AND ? AND timestamp BETWEEN ? AND ?", min, max, from, to).
		Count(&count).Error

	return count, err
}

// Calculates average response time
func (r *UsageRepository) GetAverageResponseTime(ctx context.Context, from, to time.Time) (float64, error) {
	var avg float64

	err := r.db.DB.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Select("COALESCE(AVG(response_time_ms), 0)").
		Scan(&avg).Error

	return avg, err
}

// Retrieves the most requested endpoints
func (r *UsageRepository) GetTopEndpoints(ctx context.Context, from, to time.Time, limit int) ([]map[string]interface{}, error) {
	var results []map[string]interface{}

	err := r.db.DB.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Select("endpoint, COUNT(*) as count").
		Group("endpoint").
		Order("count DESC").
		Limit(limit).
		Find(&results).Error

	return results, err
}

// Deletes records older than the cutoff
func (r *UsageRepository) DeleteOldRecords(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Delete(&models.UsageRecord{})

	return result.RowsAffected, result.Error
}
