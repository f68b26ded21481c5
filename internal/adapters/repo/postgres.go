package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abhinavprkash/ThreadBrief/internal/domain"
	"github.com/abhinavprkash/ThreadBrief/internal/infra/metrics"
)

// Postgres реализует хранилище обратной связи на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.FeedbackStore = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 5*time.Second)
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

// EnsureSchema создаёт таблицы и индексы, если их ещё нет.
// DDL идемпотентен, вызов при каждом старте безопасен.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	const ddl = `
CREATE TABLE IF NOT EXISTS digest_items (
    id          TEXT PRIMARY KEY,
    run_id      TEXT NOT NULL,
    date        DATE NOT NULL,
    team        TEXT NOT NULL,
    item_type   TEXT NOT NULL,
    title       TEXT NOT NULL,
    summary     TEXT NOT NULL DEFAULT '',
    confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
    channel     TEXT NOT NULL,
    message_ts  TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS digest_items_message_ref_key ON digest_items (channel, message_ts);
CREATE INDEX IF NOT EXISTS digest_items_created_at_idx ON digest_items (created_at);
CREATE TABLE IF NOT EXISTS feedback_events (
    id             BIGSERIAL PRIMARY KEY,
    digest_item_id TEXT NOT NULL REFERENCES digest_items(id),
    user_id        TEXT NOT NULL,
    team           TEXT NOT NULL DEFAULT '',
    feedback_type  TEXT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS feedback_events_user_item_key ON feedback_events (user_id, digest_item_id);
CREATE INDEX IF NOT EXISTS feedback_events_created_at_idx ON feedback_events (created_at);
`
	start := time.Now()
	_, err := p.pool.Exec(ctx, ddl)
	metrics.ObserveNetworkRequest("postgres", "ensure_schema", "digest_items", start, err)
	if err != nil {
		return unavailable("ensure schema", err)
	}
	return nil
}

// StoreDigestItem сохраняет опубликованный пункт дайджеста.
// Повторная запись того же id безопасна; попытка занять чужую ссылку
// на сообщение возвращает domain.ErrRefConflict.
func (p *Postgres) StoreDigestItem(ctx context.Context, item domain.DigestItem) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.Date.IsZero() {
		item.Date = item.CreatedAt
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO digest_items (id, run_id, date, team, item_type, title, summary, confidence, channel, message_ts, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET run_id=EXCLUDED.run_id, date=EXCLUDED.date, team=EXCLUDED.team, item_type=EXCLUDED.item_type, title=EXCLUDED.title, summary=EXCLUDED.summary, confidence=EXCLUDED.confidence, channel=EXCLUDED.channel, message_ts=EXCLUDED.message_ts
`, item.ID, item.RunID, item.Date, item.Team, item.ItemType, item.Title, item.Summary, item.Confidence, item.Ref.Channel, item.Ref.TS, item.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "digest_items_upsert", "digest_items", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "digest_items_message_ref_key" {
			return fmt.Errorf("item %s: %w", item.ID, domain.ErrRefConflict)
		}
		return unavailable("store digest item", err)
	}
	return nil
}

// GetItemByMessageRef находит пункт по каналу и таймстампу сообщения.
func (p *Postgres) GetItemByMessageRef(ctx context.Context, channel, ts string) (domain.DigestItem, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var item domain.DigestItem
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, run_id, date, team, item_type, title, summary, confidence, channel, message_ts, created_at
FROM digest_items WHERE channel=$1 AND message_ts=$2
`, channel, ts).Scan(&item.ID, &item.RunID, &item.Date, &item.Team, &item.ItemType, &item.Title, &item.Summary, &item.Confidence, &item.Ref.Channel, &item.Ref.TS, &item.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "digest_items_get_by_ref", "digest_items", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DigestItem{}, domain.ErrItemNotFound
	}
	if err != nil {
		return domain.DigestItem{}, unavailable("get item by ref", err)
	}
	return item, nil
}

// StoreFeedback сохраняет событие обратной связи и возвращает его id.
// Уникальный индекс по паре (user_id, digest_item_id) превращает
// одновременные дубликаты в domain.ErrDuplicateFeedback без гонок.
func (p *Postgres) StoreFeedback(ctx context.Context, event domain.FeedbackEvent) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	var id int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO feedback_events (digest_item_id, user_id, team, feedback_type, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (user_id, digest_item_id) DO NOTHING
RETURNING id
`, event.DigestItemID, event.UserID, event.Team, event.Type, event.CreatedAt).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", "feedback_events_insert", "feedback_events", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrDuplicateFeedback
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return 0, fmt.Errorf("item %s: %w", event.DigestItemID, domain.ErrItemNotFound)
		}
		return 0, unavailable("store feedback", err)
	}
	return id, nil
}

// IsDuplicate сообщает, оставлял ли пользователь отзыв на пункт.
func (p *Postgres) IsDuplicate(ctx context.Context, userID, digestItemID string) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM feedback_events WHERE user_id=$1 AND digest_item_id=$2)
`, userID, digestItemID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "feedback_events_is_duplicate", "feedback_events", start, err)
	if err != nil {
		return false, unavailable("is duplicate", err)
	}
	return exists, nil
}

// CountItemsSince считает пункты дайджеста за окно наблюдения.
// Пустая команда означает все команды.
func (p *Postgres) CountItemsSince(ctx context.Context, since time.Time, team string) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT COUNT(*) FROM digest_items WHERE created_at >= $1 AND ($2 = '' OR team = $2)
`, since, team).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "digest_items_count_since", "digest_items", start, err)
	if err != nil {
		return 0, unavailable("count items", err)
	}
	return count, nil
}

// CountFeedbackByType считает события обратной связи по типам за окно.
func (p *Postgres) CountFeedbackByType(ctx context.Context, since time.Time, team string) (map[domain.FeedbackType]int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT feedback_type, COUNT(*) FROM feedback_events
WHERE created_at >= $1 AND ($2 = '' OR team = $2)
GROUP BY feedback_type
`, since, team)
	metrics.ObserveNetworkRequest("postgres", "feedback_events_count_by_type", "feedback_events", start, err)
	if err != nil {
		return nil, unavailable("count feedback", err)
	}
	defer rows.Close()

	counts := make(map[domain.FeedbackType]int)
	for rows.Next() {
		var (
			t domain.FeedbackType
			n int
		)
		if err := rows.Scan(&t, &n); err != nil {
			return nil, unavailable("scan feedback counts", err)
		}
		counts[t] = n
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate feedback counts", err)
	}
	return counts, nil
}
