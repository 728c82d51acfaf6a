package service

import (
	"context"
	"time"

	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/internal/repository"
)

// Trend window bounds, in days.
const (
	DefaultTrendDays = 7
	MaxTrendDays     = 30
)

// AnalyticsService serves dashboard aggregates.
type AnalyticsService struct {
	stats repository.StatsRepository
	now   func() time.Time
}

// NewAnalyticsService creates a new analytics service.
func NewAnalyticsService(stats repository.StatsRepository) *AnalyticsService {
	return &AnalyticsService{stats: stats, now: time.Now}
}

// Overview returns global counters; "today" starts at UTC midnight.
func (s *AnalyticsService) Overview(ctx context.Context) (*model.Overview, error) {
	return s.stats.Overview(ctx, startOfDay(s.now()))
}

// MessageTrends returns per-day message counts for the last days days,
// today included, oldest first. Days without traffic are zero-filled.
func (s *AnalyticsService) MessageTrends(ctx context.Context, days int) ([]model.DailyMessageCount, error) {
	if days <= 0 {
		days = DefaultTrendDays
	}
	if days > MaxTrendDays {
		days = MaxTrendDays
	}

	from := startOfDay(s.now()).AddDate(0, 0, -(days - 1))
	counts, err := s.stats.DailyMessageCounts(ctx, from)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]model.DailyMessageCount, len(counts))
	for _, c := range counts {
		byDay[c.Date.UTC().Format(time.DateOnly)] = c
	}

	out := make([]model.DailyMessageCount, 0, days)
	for i := 0; i < days; i++ {
		day := from.AddDate(0, 0, i)
		c, ok := byDay[day.Format(time.DateOnly)]
		if !ok {
			c = model.DailyMessageCount{Date: day}
		}
		out = append(out, c)
	}
	return out, nil
}

// ConversationMetrics returns conversation counts by status.
func (s *AnalyticsService) ConversationMetrics(ctx context.Context) (*model.ConversationMetrics, error) {
	return s.stats.ConversationMetrics(ctx)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
