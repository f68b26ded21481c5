package feedback

import (
	"context"
	"errors"
	"time"

	"github.com/abhinavprkash/ThreadBrief/internal/domain"
)

// Status описывает исход конвейера приёма реакции.
type Status string

const (
	// StatusAccepted — событие сохранено.
	StatusAccepted Status = "accepted"
	// StatusDropped — событие отброшено одной из проверок.
	StatusDropped Status = "dropped"
)

// DropReason уточняет, какая проверка отбросила реакцию.
type DropReason string

const (
	DropUnmappedReaction DropReason = "unmapped_reaction"
	DropUnknownItem      DropReason = "unknown_item"
	DropRateLimited      DropReason = "rate_limited"
	DropDuplicate        DropReason = "duplicate"
	DropStoreUnavailable DropReason = "store_unavailable"
)

// ReactionEvent — нормализованная реакция из вебхука.
type ReactionEvent struct {
	UserID    string
	Reaction  string
	Channel   string
	MessageTS string
}

// Outcome — результат обработки реакции. Отброшенные события не
// считаются ошибками: внешнему вызывающему вебхук всегда отвечает
// подтверждением, причина остаётся в Reason и Err.
type Outcome struct {
	Status  Status
	Reason  DropReason
	EventID int64
	Type    domain.FeedbackType
	ItemID  string
	Err     error
}

// Service реализует конвейер приёма обратной связи.
type Service struct {
	mapper  *EmojiMapper
	store   domain.FeedbackStore
	metrics *Metrics
}

// NewService создаёт конвейер приёма обратной связи.
func NewService(mapper *EmojiMapper, store domain.FeedbackStore, metrics *Metrics) *Service {
	return &Service{mapper: mapper, store: store, metrics: metrics}
}

// HandleReaction проводит реакцию через все проверки и сохраняет событие.
// Порядок проверок: словарь реакций, привязка к пункту, лимит частоты,
// дубликат, запись. Каждая проверка может отбросить событие без
// частичных записей; недоступность хранилища тоже приводит к дропу.
func (s *Service) HandleReaction(ctx context.Context, event ReactionEvent) Outcome {
	feedbackType, ok := s.mapper.Resolve(event.Reaction)
	if !ok {
		return Outcome{Status: StatusDropped, Reason: DropUnmappedReaction}
	}

	item, err := s.store.GetItemByMessageRef(ctx, event.Channel, event.MessageTS)
	if errors.Is(err, domain.ErrItemNotFound) {
		return Outcome{Status: StatusDropped, Reason: DropUnknownItem, Type: feedbackType}
	}
	if err != nil {
		return Outcome{Status: StatusDropped, Reason: DropStoreUnavailable, Type: feedbackType, Err: err}
	}

	allowed, _, err := s.metrics.CheckRateLimit(ctx, event.UserID)
	if err != nil {
		return Outcome{Status: StatusDropped, Reason: DropStoreUnavailable, Type: feedbackType, ItemID: item.ID, Err: err}
	}
	if !allowed {
		return Outcome{Status: StatusDropped, Reason: DropRateLimited, Type: feedbackType, ItemID: item.ID}
	}

	dup, err := s.metrics.IsDuplicate(ctx, event.UserID, item.ID)
	if err != nil {
		return Outcome{Status: StatusDropped, Reason: DropStoreUnavailable, Type: feedbackType, ItemID: item.ID, Err: err}
	}
	if dup {
		return Outcome{Status: StatusDropped, Reason: DropDuplicate, Type: feedbackType, ItemID: item.ID}
	}

	id, err := s.store.StoreFeedback(ctx, domain.FeedbackEvent{
		DigestItemID: item.ID,
		UserID:       event.UserID,
		Team:         item.Team,
		Type:         feedbackType,
		CreatedAt:    time.Now().UTC(),
	})
	switch {
	case errors.Is(err, domain.ErrDuplicateFeedback):
		// Конкурентная доставка того же события успела записаться первой.
		return Outcome{Status: StatusDropped, Reason: DropDuplicate, Type: feedbackType, ItemID: item.ID}
	case errors.Is(err, domain.ErrItemNotFound):
		return Outcome{Status: StatusDropped, Reason: DropUnknownItem, Type: feedbackType, ItemID: item.ID}
	case err != nil:
		return Outcome{Status: StatusDropped, Reason: DropStoreUnavailable, Type: feedbackType, ItemID: item.ID, Err: err}
	}

	return Outcome{Status: StatusAccepted, EventID: id, Type: feedbackType, ItemID: item.ID}
}

// ResolveSignal возвращает тип обратной связи для реакции.
// Используется при снятии реакции: событие остаётся, факт попадает в лог.
func (s *Service) ResolveSignal(reaction string) (domain.FeedbackType, bool) {
	return s.mapper.Resolve(reaction)
}

// Snapshot строит сводку обратной связи за окно в днях.
func (s *Service) Snapshot(ctx context.Context, days int, team string) (domain.Snapshot, error) {
	return s.metrics.ComputeSnapshot(ctx, days, team)
}
