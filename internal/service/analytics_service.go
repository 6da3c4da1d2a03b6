package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/brovoice-api/internal/dto"
	"github.com/noah-isme/brovoice-api/internal/observability"
	"github.com/noah-isme/brovoice-api/internal/repository"
	"github.com/noah-isme/brovoice-api/internal/session"
)

const analyticsCacheKey = "analytics:summary"

// AnalyticsService aggregates complaint analytics for staff.
type AnalyticsService interface {
	Summary(ctx context.Context, sess session.Session) (dto.AnalyticsResponse, error)
	Invalidate(ctx context.Context)
}

type analyticsService struct {
	repo     repository.ComplaintRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewAnalyticsService constructs the analytics service. A nil cache always recomputes.
func NewAnalyticsService(repo repository.ComplaintRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) AnalyticsService {
	return &analyticsService{
		repo:     repo,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "analytics_service").Logger(),
		now:      time.Now,
	}
}

func (s *analyticsService) Summary(ctx context.Context, sess session.Session) (dto.AnalyticsResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/brovoice-api/internal/service/analytics")
	ctx, span := tracer.Start(ctx, "analytics.aggregate")
	span.SetAttributes(attribute.String("analytics.cache_key", analyticsCacheKey))
	defer span.End()

	if err := sess.RequireStaff(); err != nil {
		return dto.AnalyticsResponse{}, err
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, analyticsCacheKey).Result()
		if err == nil {
			var response dto.AnalyticsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				observability.AnalyticsCacheLookups().WithLabelValues("hit").Inc()
				span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read analytics cache")
			span.RecordError(err)
		}
		observability.AnalyticsCacheLookups().WithLabelValues("miss").Inc()
	}

	complaints, _, err := s.repo.List(ctx, sess, repository.ComplaintFilter{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_complaints_failed")
		return dto.AnalyticsResponse{}, err
	}

	summary := BuildAnalytics(complaints, s.now().UTC())
	span.SetAttributes(attribute.Int("analytics.complaint_count", len(complaints)))

	if s.cache != nil {
		payload, err := json.Marshal(summary)
		if err == nil {
			if err := s.cache.Set(ctx, analyticsCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store analytics cache")
				span.RecordError(err)
			}
		}
	}

	return summary, nil
}

// Invalidate drops the cached summary after a complaint write.
func (s *analyticsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, analyticsCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate analytics cache")
	}
}
