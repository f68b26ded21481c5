package distribute

import (
	"context"
	"fmt"
	"time"

	"github.com/abhinavprkash/ThreadBrief/internal/domain"
	"github.com/abhinavprkash/ThreadBrief/internal/infra/metrics"
)

// Config задаёт каналы назначения и пороги уверенности.
type Config struct {
	DigestChannel string
	TeamChannels  map[string]string
	Leadership    []string
	HighThreshold float64
	LowThreshold  float64
}

// NopRecorder выключает отслеживание обратной связи: запись пункта
// ничего не делает и всегда успешна.
type NopRecorder struct{}

var _ domain.ItemRecorder = NopRecorder{}

// StoreDigestItem реализует domain.ItemRecorder.
func (NopRecorder) StoreDigestItem(context.Context, domain.DigestItem) error { return nil }

// Service публикует дайджест по каналам и фиксирует опубликованные
// пункты для последующего сопоставления реакций.
type Service struct {
	messenger domain.Messenger
	store     domain.ItemRecorder
	tracking  bool
	cfg       Config
}

// NewService создаёт рассыльщик. Нулевой store или NopRecorder означает
// выключенное отслеживание: пункты публикуются, но не фиксируются и не
// попадают в счётчик ItemsStored.
func NewService(messenger domain.Messenger, store domain.ItemRecorder, cfg Config) *Service {
	tracking := true
	switch store.(type) {
	case nil, NopRecorder:
		store = NopRecorder{}
		tracking = false
	}
	if cfg.HighThreshold <= 0 {
		cfg.HighThreshold = 0.7
	}
	if cfg.LowThreshold <= 0 {
		cfg.LowThreshold = 0.3
	}
	return &Service{messenger: messenger, store: store, tracking: tracking, cfg: cfg}
}

// Distribute проводит полный прогон рассылки: заголовок, пункты по
// корзинам уверенности, командные разборы и сводки руководству.
// Ошибка любого шага записывается в результат и не прерывает
// остальные шаги. Отмена контекста останавливает выдачу новых
// публикаций, начатая публикация завершается естественным образом.
func (s *Service) Distribute(ctx context.Context, digest domain.Digest, analyses []domain.TeamAnalysis, runID string) domain.DistributionResult {
	start := time.Now()
	defer metrics.ObserveDistributionRun(start)

	if runID == "" {
		runID = time.Now().UTC().Format("20060102_150405")
	}
	result := domain.DistributionResult{
		RunID:     runID,
		TeamPosts: make(map[string]domain.PostResult),
		DMs:       make(map[string]domain.PostResult),
	}

	// Заголовок идёт первым: читатели канала ждут его раньше пунктов.
	headerText, headerBlocks := FormatHeader(digest, analyses)
	headerPost, err := s.post(ctx, "header", s.cfg.DigestChannel, headerText, headerBlocks)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("post header: %v", err))
	} else {
		result.Header = headerPost
	}

	high, low, excluded := FormatItems(analyses, runID, s.cfg.HighThreshold, s.cfg.LowThreshold)
	result.Excluded = excluded

	s.postItems(ctx, &result, high, domain.BucketMain, runID, digest.Date)

	if len(low) > 0 {
		if _, err := s.post(ctx, "divider", s.cfg.DigestChannel, fyiDividerText, fyiDividerBlocks()); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("post fyi divider: %v", err))
		}
		s.postItems(ctx, &result, low, domain.BucketFYI, runID, digest.Date)
	}

	for _, ta := range analyses {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("canceled before team posts: %v", err))
			break
		}
		channel := s.cfg.TeamChannels[ta.Team]
		if channel == "" {
			result.TeamPosts[ta.Team] = domain.PostResult{}
			result.Errors = append(result.Errors, fmt.Sprintf("team %s: %v", ta.Team, domain.ErrNoChannelConfigured))
			continue
		}
		post, err := s.post(ctx, "team", channel, FormatTeamDetails(ta), nil)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("post to team %s: %v", ta.Team, err))
		}
		result.TeamPosts[ta.Team] = post
	}

	dmText := FormatLeadershipDM(digest, analyses)
	for _, userID := range s.cfg.Leadership {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("canceled before leadership dms: %v", err))
			break
		}
		post, err := s.messenger.SendDirectMessage(ctx, userID, dmText)
		metrics.IncDistributionPost("dm", err)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("dm %s: %v", userID, err))
		}
		result.DMs[userID] = post
	}

	return result
}

func (s *Service) post(ctx context.Context, kind, channel, text string, blocks []domain.Block) (domain.PostResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.PostResult{}, err
	}
	post, err := s.messenger.PostMessage(ctx, channel, text, blocks)
	metrics.IncDistributionPost(kind, err)
	if err != nil {
		return domain.PostResult{}, err
	}
	return post, nil
}

// postItems публикует пункты одной корзины. Неудача одного пункта не
// мешает остальным; успешно опубликованный пункт сразу фиксируется
// в хранилище под ссылкой возвращённого сообщения.
func (s *Service) postItems(ctx context.Context, result *domain.DistributionResult, msgs []DigestItemMessage, bucket domain.ConfidenceBucket, runID string, date time.Time) {
	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("canceled before item %s: %v", msg.ItemID, err))
			return
		}

		post, err := s.messenger.PostMessage(ctx, s.cfg.DigestChannel, msg.Text, msg.Blocks)
		metrics.IncDistributionPost("item", err)
		item := domain.ItemPostResult{ItemID: msg.ItemID, Team: msg.Team, Bucket: bucket, Confidence: msg.Confidence}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("post item %s: %v", msg.ItemID, err))
			result.Items = append(result.Items, item)
			continue
		}
		item.Post = post

		storeErr := s.store.StoreDigestItem(ctx, domain.DigestItem{
			ID:         msg.ItemID,
			RunID:      runID,
			Date:       date,
			Team:       msg.Team,
			ItemType:   msg.ItemType,
			Title:      msg.Title,
			Summary:    msg.Summary,
			Confidence: msg.Confidence,
			Ref:        post.Ref,
			CreatedAt:  time.Now().UTC(),
		})
		switch {
		case storeErr != nil:
			result.Errors = append(result.Errors, fmt.Sprintf("store item %s: %v", msg.ItemID, storeErr))
		case s.tracking:
			item.Stored = true
			result.ItemsStored++
			metrics.DigestItemsStored.Inc()
		}
		result.Items = append(result.Items, item)
	}
}

// Preview отрисовывает прогон целиком, не публикуя ни одного сообщения.
func (s *Service) Preview(digest domain.Digest, analyses []domain.TeamAnalysis, runID string) domain.DistributionPreview {
	if runID == "" {
		runID = time.Now().UTC().Format("20060102_150405")
	}
	headerText, headerBlocks := FormatHeader(digest, analyses)
	mainText, mainBlocks := FormatMainDigest(digest, analyses)
	high, low, excluded := FormatItems(analyses, runID, s.cfg.HighThreshold, s.cfg.LowThreshold)

	preview := domain.DistributionPreview{
		RunID:        runID,
		Header:       domain.MessagePreview{Text: headerText, Blocks: headerBlocks},
		MainDigest:   domain.MessagePreview{Text: mainText, Blocks: mainBlocks},
		Excluded:     excluded,
		TeamDetails:  make(map[string]string, len(analyses)),
		LeadershipDM: FormatLeadershipDM(digest, analyses),
	}
	for _, msg := range high {
		preview.Items = append(preview.Items, itemPreview(msg, domain.BucketMain))
	}
	for _, msg := range low {
		preview.Items = append(preview.Items, itemPreview(msg, domain.BucketFYI))
	}
	for _, ta := range analyses {
		preview.TeamDetails[ta.Team] = FormatTeamDetails(ta)
	}
	return preview
}

func itemPreview(msg DigestItemMessage, bucket domain.ConfidenceBucket) domain.ItemPreview {
	return domain.ItemPreview{
		ItemID:     msg.ItemID,
		Team:       msg.Team,
		Title:      msg.Title,
		Confidence: msg.Confidence,
		Bucket:     bucket,
		Preview:    domain.MessagePreview{Text: msg.Text, Blocks: msg.Blocks},
	}
}
