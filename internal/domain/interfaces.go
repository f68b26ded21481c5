package domain

import (
	"context"
	"time"
)

// Messenger публикует сообщения в мессенджере.
type Messenger interface {
	PostMessage(ctx context.Context, channel, text string, blocks []Block) (PostResult, error)
	SendDirectMessage(ctx context.Context, userID, text string) (PostResult, error)
}

// ItemRecorder сохраняет опубликованные пункты дайджеста для
// последующего сопоставления реакций. Рассыльщику достаточно
// этого узкого контракта.
type ItemRecorder interface {
	StoreDigestItem(ctx context.Context, item DigestItem) error
}

// FeedbackReader отдаёт агрегаты для сводки обратной связи.
type FeedbackReader interface {
	CountItemsSince(ctx context.Context, since time.Time, team string) (int, error)
	CountFeedbackByType(ctx context.Context, since time.Time, team string) (map[FeedbackType]int, error)
}

// FeedbackStore хранит пункты дайджеста и события обратной связи.
type FeedbackStore interface {
	ItemRecorder
	FeedbackReader
	// GetItemByMessageRef находит пункт по каналу и таймстампу сообщения.
	// Для неотслеживаемых сообщений возвращает ErrItemNotFound.
	GetItemByMessageRef(ctx context.Context, channel, ts string) (DigestItem, error)
	// StoreFeedback сохраняет событие и возвращает его идентификатор.
	// Повторное событие той же пары (user, item) даёт ErrDuplicateFeedback.
	StoreFeedback(ctx context.Context, event FeedbackEvent) (int64, error)
	// IsDuplicate сообщает, оставлял ли пользователь отзыв на пункт.
	IsDuplicate(ctx context.Context, userID, digestItemID string) (bool, error)
}

// RateLimiter атомарно увеличивает счётчик пользователя в текущем окне
// и возвращает новое значение. Счётчик общий для всех экземпляров сервиса.
type RateLimiter interface {
	Incr(ctx context.Context, userID string) (int64, error)
}
