package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abhinavprkash/ThreadBrief/internal/domain"
)

// Metrics отвечает за лимит частоты, защиту от дубликатов и сводку
// обратной связи. Счётчик лимита и проверка дубликатов живут во внешних
// хранилищах, поэтому движок корректен при нескольких экземплярах
// слушателя и переживает рестарты.
type Metrics struct {
	store   domain.FeedbackStore
	limiter domain.RateLimiter
	limit   int
}

// NewMetrics создаёт движок метрик обратной связи.
func NewMetrics(store domain.FeedbackStore, limiter domain.RateLimiter, limit int) *Metrics {
	if limit <= 0 {
		limit = 20
	}
	return &Metrics{store: store, limiter: limiter, limit: limit}
}

// CheckRateLimit атомарно учитывает реакцию пользователя в фиксированном
// окне и сообщает, уложился ли он в лимит. Инкремент и сравнение не
// разделяются, поэтому конкурентные запросы не дают превысить лимит.
func (m *Metrics) CheckRateLimit(ctx context.Context, userID string) (bool, int, error) {
	count, err := m.limiter.Incr(ctx, userID)
	if err != nil {
		return false, 0, fmt.Errorf("учёт лимита: %w", err)
	}
	remaining := m.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return count <= int64(m.limit), remaining, nil
}

// IsDuplicate проверяет наличие отзыва по долговременному хранилищу.
func (m *Metrics) IsDuplicate(ctx context.Context, userID, digestItemID string) (bool, error) {
	return m.store.IsDuplicate(ctx, userID, digestItemID)
}

// ComputeSnapshot строит сводку обратной связи за скользящее окно в днях.
// Только чтение, без побочных эффектов.
func (m *Metrics) ComputeSnapshot(ctx context.Context, days int, team string) (domain.Snapshot, error) {
	if days <= 0 {
		return domain.Snapshot{}, errors.New("окно сводки должно быть положительным")
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	items, err := m.store.CountItemsSince(ctx, since, team)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("подсчёт пунктов: %w", err)
	}
	counts, err := m.store.CountFeedbackByType(ctx, since, team)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("подсчёт отзывов: %w", err)
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	positive := counts[domain.FeedbackPositive]
	negative := counts[domain.FeedbackNegative]
	ratio := 0.0
	if positive+negative > 0 {
		ratio = float64(positive) / float64(positive+negative)
	}

	return domain.Snapshot{
		WindowDays:          days,
		Team:                team,
		TotalDigestItems:    items,
		TotalFeedbackEvents: total,
		CountsByType:        counts,
		AccuracyRatio:       ratio,
		GeneratedAt:         time.Now().UTC(),
	}, nil
}
