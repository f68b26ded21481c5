package feedback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abhinavprkash/ThreadBrief/internal/domain"
)

type fakeStore struct {
	mu     sync.Mutex
	items  map[string]domain.DigestItem
	events []domain.FeedbackEvent
	seen   map[string]bool

	refErr   error
	storeErr error
	// dupCheckBlind выключает предварительную проверку дубликатов,
	// чтобы конфликт ловила сама вставка.
	dupCheckBlind bool
	dupErr        error

	itemCount    int
	typeCounts   map[domain.FeedbackType]int
	countErr     error
	capturedTeam string
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: map[string]domain.DigestItem{}, seen: map[string]bool{}}
}

func (f *fakeStore) StoreDigestItem(_ context.Context, item domain.DigestItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID] = item
	return nil
}

func (f *fakeStore) GetItemByMessageRef(_ context.Context, channel, ts string) (domain.DigestItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refErr != nil {
		return domain.DigestItem{}, f.refErr
	}
	for _, item := range f.items {
		if item.Ref.Channel == channel && item.Ref.TS == ts {
			return item, nil
		}
	}
	return domain.DigestItem{}, domain.ErrItemNotFound
}

func (f *fakeStore) StoreFeedback(_ context.Context, event domain.FeedbackEvent) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return 0, f.storeErr
	}
	key := event.UserID + "|" + event.DigestItemID
	if f.seen[key] {
		return 0, domain.ErrDuplicateFeedback
	}
	f.seen[key] = true
	event.ID = int64(len(f.events) + 1)
	f.events = append(f.events, event)
	return event.ID, nil
}

func (f *fakeStore) IsDuplicate(_ context.Context, userID, digestItemID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dupErr != nil {
		return false, f.dupErr
	}
	if f.dupCheckBlind {
		return false, nil
	}
	return f.seen[userID+"|"+digestItemID], nil
}

func (f *fakeStore) CountItemsSince(_ context.Context, _ time.Time, team string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	f.capturedTeam = team
	return f.itemCount, nil
}

func (f *fakeStore) CountFeedbackByType(_ context.Context, _ time.Time, _ string) (map[domain.FeedbackType]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return nil, f.countErr
	}
	counts := make(map[domain.FeedbackType]int, len(f.typeCounts))
	for t, n := range f.typeCounts {
		counts[t] = n
	}
	return counts, nil
}

type fakeLimiter struct {
	count int64
	err   error
}

func (f *fakeLimiter) Incr(context.Context, string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return atomic.AddInt64(&f.count, 1), nil
}

func seedItem(store *fakeStore) domain.DigestItem {
	item := domain.DigestItem{
		ID:   "20260101_080000_platform_0",
		Team: "platform",
		Ref:  domain.MessageRef{Channel: "C123", TS: "1700000000.000100"},
	}
	store.items[item.ID] = item
	return item
}

func newTestService(store *fakeStore, limiter domain.RateLimiter, limit int) *Service {
	return NewService(NewEmojiMapper(nil), store, NewMetrics(store, limiter, limit))
}

func TestHandleReactionAccepted(t *testing.T) {
	store := newFakeStore()
	item := seedItem(store)
	svc := newTestService(store, &fakeLimiter{}, 20)

	out := svc.HandleReaction(context.Background(), ReactionEvent{
		UserID:    "U42",
		Reaction:  "white_check_mark",
		Channel:   item.Ref.Channel,
		MessageTS: item.Ref.TS,
	})

	if out.Status != StatusAccepted {
		t.Fatalf("ожидали accepted, получили %s (%s)", out.Status, out.Reason)
	}
	if out.EventID == 0 {
		t.Fatalf("ожидали идентификатор события")
	}
	if out.Type != domain.FeedbackPositive {
		t.Fatalf("ожидали positive, получили %s", out.Type)
	}
	if out.ItemID != item.ID {
		t.Fatalf("ожидали привязку к пункту %s, получили %s", item.ID, out.ItemID)
	}
	if len(store.events) != 1 {
		t.Fatalf("ожидали 1 сохранённое событие, получили %d", len(store.events))
	}
	event := store.events[0]
	if event.UserID != "U42" || event.DigestItemID != item.ID || event.Team != "platform" {
		t.Fatalf("событие сохранено с неверными полями: %+v", event)
	}
}

func TestHandleReactionUnmapped(t *testing.T) {
	store := newFakeStore()
	seedItem(store)
	svc := newTestService(store, &fakeLimiter{}, 20)

	out := svc.HandleReaction(context.Background(), ReactionEvent{
		UserID:    "U42",
		Reaction:  "eyes",
		Channel:   "C123",
		MessageTS: "1700000000.000100",
	})

	if out.Status != StatusDropped || out.Reason != DropUnmappedReaction {
		t.Fatalf("ожидали дроп unmapped_reaction, получили %s/%s", out.Status, out.Reason)
	}
	if len(store.events) != 0 {
		t.Fatalf("незначимая реакция не должна порождать событий")
	}
}

func TestHandleReactionUnknownItem(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeLimiter{}, 20)

	out := svc.HandleReaction(context.Background(), ReactionEvent{
		UserID:    "U42",
		Reaction:  "x",
		Channel:   "C123",
		MessageTS: "1700000000.000999",
	})

	if out.Status != StatusDropped || out.Reason != DropUnknownItem {
		t.Fatalf("ожидали дроп unknown_item, получили %s/%s", out.Status, out.Reason)
	}
	if out.Type != domain.FeedbackNegative {
		t.Fatalf("тип сигнала должен сохраняться в исходе, получили %s", out.Type)
	}
}

func TestHandleReactionRateLimited(t *testing.T) {
	store := newFakeStore()
	item := seedItem(store)
	limiter := &fakeLimiter{count: 20}
	svc := newTestService(store, limiter, 20)

	out := svc.HandleReaction(context.Background(), ReactionEvent{
		UserID:    "U42",
		Reaction:  "thumbsup",
		Channel:   item.Ref.Channel,
		MessageTS: item.Ref.TS,
	})

	if out.Status != StatusDropped || out.Reason != DropRateLimited {
		t.Fatalf("ожидали дроп rate_limited, получили %s/%s", out.Status, out.Reason)
	}
	if len(store.events) != 0 {
		t.Fatalf("превышение лимита не должно порождать событий")
	}
}

func TestHandleReactionIdempotentReplay(t *testing.T) {
	store := newFakeStore()
	item := seedItem(store)
	svc := newTestService(store, &fakeLimiter{}, 20)
	event := ReactionEvent{UserID: "U42", Reaction: "jigsaw", Channel: item.Ref.Channel, MessageTS: item.Ref.TS}

	first := svc.HandleReaction(context.Background(), event)
	if first.Status != StatusAccepted {
		t.Fatalf("первая доставка должна приниматься, получили %s/%s", first.Status, first.Reason)
	}

	second := svc.HandleReaction(context.Background(), event)
	if second.Status != StatusDropped || second.Reason != DropDuplicate {
		t.Fatalf("повторная доставка должна дропаться как duplicate, получили %s/%s", second.Status, second.Reason)
	}
	if len(store.events) != 1 {
		t.Fatalf("ожидали одно событие после повтора, получили %d", len(store.events))
	}
}

func TestHandleReactionDuplicateCaughtByInsert(t *testing.T) {
	store := newFakeStore()
	item := seedItem(store)
	store.dupCheckBlind = true
	svc := newTestService(store, &fakeLimiter{}, 20)
	event := ReactionEvent{UserID: "U42", Reaction: "x", Channel: item.Ref.Channel, MessageTS: item.Ref.TS}

	if out := svc.HandleReaction(context.Background(), event); out.Status != StatusAccepted {
		t.Fatalf("первая доставка должна приниматься, получили %s/%s", out.Status, out.Reason)
	}
	out := svc.HandleReaction(context.Background(), event)
	if out.Status != StatusDropped || out.Reason != DropDuplicate {
		t.Fatalf("вставка должна ловить дубликат, получили %s/%s", out.Status, out.Reason)
	}
	if len(store.events) != 1 {
		t.Fatalf("ожидали одно событие, получили %d", len(store.events))
	}
}

func TestHandleReactionStoreOutageOnLookup(t *testing.T) {
	store := newFakeStore()
	store.refErr = errors.New("connection refused")
	svc := newTestService(store, &fakeLimiter{}, 20)

	out := svc.HandleReaction(context.Background(), ReactionEvent{
		UserID:    "U42",
		Reaction:  "x",
		Channel:   "C123",
		MessageTS: "1700000000.000100",
	})

	if out.Status != StatusDropped || out.Reason != DropStoreUnavailable {
		t.Fatalf("ожидали дроп store_unavailable, получили %s/%s", out.Status, out.Reason)
	}
	if out.Err == nil {
		t.Fatalf("исход должен нести причину отказа хранилища")
	}
}

func TestHandleReactionLimiterOutage(t *testing.T) {
	store := newFakeStore()
	item := seedItem(store)
	svc := newTestService(store, &fakeLimiter{err: errors.New("redis down")}, 20)

	out := svc.HandleReaction(context.Background(), ReactionEvent{
		UserID:    "U42",
		Reaction:  "x",
		Channel:   item.Ref.Channel,
		MessageTS: item.Ref.TS,
	})

	if out.Status != StatusDropped || out.Reason != DropStoreUnavailable {
		t.Fatalf("отказ лимитера должен дропать событие, получили %s/%s", out.Status, out.Reason)
	}
	if len(store.events) != 0 {
		t.Fatalf("при отказе лимитера записей быть не должно")
	}
}

func TestHandleReactionStoreOutageOnInsert(t *testing.T) {
	store := newFakeStore()
	item := seedItem(store)
	store.storeErr = errors.New("insert failed")
	svc := newTestService(store, &fakeLimiter{}, 20)

	out := svc.HandleReaction(context.Background(), ReactionEvent{
		UserID:    "U42",
		Reaction:  "x",
		Channel:   item.Ref.Channel,
		MessageTS: item.Ref.TS,
	})

	if out.Status != StatusDropped || out.Reason != DropStoreUnavailable {
		t.Fatalf("отказ вставки должен дропать событие, получили %s/%s", out.Status, out.Reason)
	}
}

func TestHandleReactionConcurrentDuplicates(t *testing.T) {
	store := newFakeStore()
	item := seedItem(store)
	// Слепая предварительная проверка заставляет все горутины дойти
	// до вставки: единственность обеспечивает только она.
	store.dupCheckBlind = true
	svc := newTestService(store, &fakeLimiter{}, 100)
	event := ReactionEvent{UserID: "U42", Reaction: "thumbsup", Channel: item.Ref.Channel, MessageTS: item.Ref.TS}

	const attempts = 8
	outcomes := make([]Outcome, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = svc.HandleReaction(context.Background(), event)
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, out := range outcomes {
		switch {
		case out.Status == StatusAccepted:
			accepted++
		case out.Reason != DropDuplicate:
			t.Fatalf("конкурентная доставка должна дропаться только как duplicate, получили %s/%s", out.Status, out.Reason)
		}
	}
	if accepted != 1 {
		t.Fatalf("ожидали ровно одно принятое событие, получили %d", accepted)
	}
	if len(store.events) != 1 {
		t.Fatalf("ожидали одну запись в хранилище, получили %d", len(store.events))
	}
}

func TestResolveSignal(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeLimiter{}, 20)

	feedbackType, ok := svc.ResolveSignal("no_bell")
	if !ok || feedbackType != domain.FeedbackSilence {
		t.Fatalf("ожидали silence для no_bell, получили %s (%v)", feedbackType, ok)
	}
	if _, ok := svc.ResolveSignal("tada"); ok {
		t.Fatalf("неизвестная реакция не должна резолвиться")
	}
}
