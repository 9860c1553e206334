package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/meverapp/media-gateway/internal/models"
	"github.com/meverapp/media-gateway/internal/repository"
	"github.com/meverapp/media-gateway/internal/storage"
)

// UsageService maintains the append-only usage log. Records are queued on a
// buffered channel and batch-inserted by a background worker; nothing in
// this path may ever slow down or fail a client response.
type UsageService struct {
	repo    *repository.UsageRepository
	redis   *storage.RedisClient
	logger  *zap.Logger
	records chan models.UsageRecord
}

func NewUsageService(repo *repository.UsageRepository, redis *storage.RedisClient, logger *zap.Logger, bufferSize int) *UsageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	return &UsageService{
		repo:    repo,
		redis:   redis,
		logger:  logger,
		records: make(chan models.UsageRecord, bufferSize),
	}
}

// Record queues a usage record. Drops it if the buffer is full.
func (s *UsageService) Record(rec models.UsageRecord) {
	select {
	case s.records <- rec:
	default:
		s.logger.Warn("usage record buffer full, dropping record",
			zap.String("endpoint", rec.Endpoint))
	}
}

// Start runs the batching worker until ctx is cancelled.
func (s *UsageService) Start(ctx context.Context) {
	go func() {
		batch := make([]models.UsageRecord, 0, 100)
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		retention := time.NewTicker(24 * time.Hour)
		defer retention.Stop()

		for {
			select {
			case rec := <-s.records:
				rec.DayCount = s.bumpDayCount(ctx, rec)
				batch = append(batch, rec)

				if len(batch) >= 100 {
					s.flush(ctx, batch)
					batch = make([]models.UsageRecord, 0, 100)
				}
			case <-ticker.C:
				if len(batch) > 0 {
					s.flush(ctx, batch)
					batch = make([]models.UsageRecord, 0, 100)
				}
			case <-retention.C:
				s.prune(ctx)
			case <-ctx.Done():
				if len(batch) > 0 {
					s.flush(context.Background(), batch)
				}
				return
			}
		}
	}()
}

// bumpDayCount increments the coarse per-day-per-key counter in redis and
// returns the new value. Best-effort: on any failure the count is zero.
func (s *UsageService) bumpDayCount(ctx context.Context, rec models.UsageRecord) int64 {
	if s.redis == nil {
		return 0
	}

	key := "usage:" + rec.Timestamp.UTC().Format("2006-01-02") + ":" + rec.ClientIP
	count, err := s.redis.Incr(ctx, key)
	if err != nil {
		s.logger.Warn("day counter increment failed", zap.Error(err))
		return 0
	}
	if count == 1 {
		// Counter keys for a given day die two days later.
		if err := s.redis.Expire(ctx, key, 48*time.Hour); err != nil {
			s.logger.Warn("day counter expire failed", zap.Error(err))
		}
	}

	return count
}

// prune drops usage records older than the 30 day retention horizon.
func (s *UsageService) prune(ctx context.Context) {
	if s.repo == nil {
		return
	}

	deleted, err := s.repo.DeleteOldRecords(ctx, time.Now().AddDate(0, 0, -30))
	if err != nil {
		s.logger.Warn("usage retention sweep failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Info("usage retention sweep", zap.Int64("deleted", deleted))
	}
}

func (s *UsageService) flush(ctx context.Context, batch []models.UsageRecord) {
	if s.repo == nil {
		return
	}

	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		// Log error but dont block or surface it anywhere
		s.logger.Warn("failed to insert usage records",
			zap.Int("count", len(batch)), zap.Error(err))
	}
}

// Holds usage summary data
type UsageSummary struct {
	TotalRequests   int64                    `json:"total_requests"`
	AvgResponseTime float64                  `json:"avg_response_time_ms"`
	ErrorRate       float64                  `json:"error_rate"`
	SuccessRate     float64                  `json:"success_rate"`
	ClientErrorRate float64                  `json:"client_error_rate"`
	ServerErrorRate float64                  `json:"server_error_rate"`
	TopEndpoints    []map[string]interface{} `json:"top_endpoints"`
}

// Retrieves a usage summary for a time range
func (s *UsageService) GetSummary(ctx context.Context, from, to time.Time) (*UsageSummary, error) {
	if s.repo == nil {
		return nil, errors.New("usage storage is not configured")
	}

	summary := &UsageSummary{}

	totalRequests, err := s.repo.CountByTimeRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.TotalRequests = totalRequests

	if totalRequests == 0 {
		return summary, nil
	}

	avgResponseTime, err := s.repo.GetAverageResponseTime(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.AvgResponseTime = avgResponseTime

	clientErrors, err := s.repo.CountByStatusCodeRange(ctx, 400, 499, from, to)
	if err != nil {
		return nil, err
	}

	serverErrors, err := s.repo.CountByStatusCodeRange(ctx, 500, 599, from, to)
	if err != nil {
		return nil, err
	}

	totalErrors := clientErrors + serverErrors
	summary.ErrorRate = (float64(totalErrors) / float64(totalRequests)) * 100
	summary.SuccessRate = 100 - summary.ErrorRate
	summary.ClientErrorRate = (float64(clientErrors) / float64(totalRequests)) * 100
	summary.ServerErrorRate = (float64(serverErrors) / float64(totalRequests)) * 100

	topEndpoints, err := s.repo.GetTopEndpoints(ctx, from, to, 10)
	if err != nil {
		return nil, err
	}
	summary.TopEndpoints = topEndpoints

	return summary, nil
}
