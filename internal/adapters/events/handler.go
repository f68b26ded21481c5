package events

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	infrahttp "github.com/abhinavprkash/ThreadBrief/internal/infra/http"
	"github.com/abhinavprkash/ThreadBrief/internal/infra/metrics"
	"github.com/abhinavprkash/ThreadBrief/internal/usecase/feedback"
)

const maxSnapshotDays = 365

// Handler обслуживает вебхук событий Slack и сервисные эндпоинты
// слушателя обратной связи.
type Handler struct {
	ingest     *feedback.Service
	windowDays int
	log        zerolog.Logger
}

// NewHandler создаёт обработчик событий.
func NewHandler(ingest *feedback.Service, windowDays int, log zerolog.Logger) *Handler {
	if windowDays <= 0 {
		windowDays = 7
	}
	return &Handler{ingest: ingest, windowDays: windowDays, log: log}
}

type eventEnvelope struct {
	Type      string     `json:"type"`
	Challenge string     `json:"challenge,omitempty"`
	Event     innerEvent `json:"event,omitempty"`
}

type innerEvent struct {
	Type     string `json:"type"`
	User     string `json:"user"`
	Reaction string `json:"reaction"`
	Item     struct {
		Type    string `json:"type"`
		Channel string `json:"channel"`
		TS      string `json:"ts"`
	} `json:"item"`
}

// HandleEvents принимает событие Slack Events API.
// Вебхук всегда отвечает быстро и подтверждением: бизнесовые отказы
// не должны провоцировать повторные доставки со стороны платформы.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	var envelope eventEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		h.log.Warn().Err(err).Str("request_id", infrahttp.RequestID(r)).Msg("events: не удалось разобрать событие")
		h.writeJSON(w, http.StatusOK, map[string]any{"ok": false})
		return
	}

	switch envelope.Type {
	case "url_verification":
		h.writeJSON(w, http.StatusOK, map[string]string{"challenge": envelope.Challenge})
		return
	case "event_callback":
		metrics.IncWebhookEvent(envelope.Event.Type)
		switch envelope.Event.Type {
		case "reaction_added":
			h.handleReactionAdded(r, envelope.Event)
		case "reaction_removed":
			h.handleReactionRemoved(envelope.Event)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReactionAdded(r *http.Request, event innerEvent) {
	if event.User == "" || event.Reaction == "" || event.Item.TS == "" {
		h.log.Debug().Msg("events: событие реакции без обязательных полей")
		return
	}

	outcome := h.ingest.HandleReaction(r.Context(), feedback.ReactionEvent{
		UserID:    event.User,
		Reaction:  event.Reaction,
		Channel:   event.Item.Channel,
		MessageTS: event.Item.TS,
	})
	metrics.ObserveFeedbackOutcome(string(outcome.Status), string(outcome.Reason))

	if outcome.Status == feedback.StatusAccepted {
		metrics.IncFeedbackByType(string(outcome.Type))
		h.log.Info().
			Int64("event_id", outcome.EventID).
			Str("item_id", outcome.ItemID).
			Str("feedback_type", string(outcome.Type)).
			Str("user_id", event.User).
			Msg("events: отзыв сохранён")
		return
	}

	switch outcome.Reason {
	case feedback.DropStoreUnavailable:
		h.log.Error().Err(outcome.Err).
			Str("user_id", event.User).
			Str("item_id", outcome.ItemID).
			Msg("events: хранилище недоступно, событие отброшено")
	case feedback.DropUnmappedReaction:
		h.log.Debug().Str("reaction", event.Reaction).Msg("events: реакция вне словаря")
	default:
		h.log.Info().
			Str("reason", string(outcome.Reason)).
			Str("user_id", event.User).
			Str("item_id", outcome.ItemID).
			Msg("events: событие отброшено")
	}
}

func (h *Handler) handleReactionRemoved(event innerEvent) {
	if _, ok := h.ingest.ResolveSignal(event.Reaction); !ok {
		return
	}
	// Снятая реакция не отзывает событие: запись остаётся как факт сигнала.
	h.log.Info().
		Str("user_id", event.User).
		Str("reaction", event.Reaction).
		Msg("events: реакция снята, отзыв сохраняется")
}

// HandleHealth отвечает на проверку живости.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleMetrics отдаёт сводку обратной связи за окно из query-параметров.
// Некорректное значение days откатывается к окну по умолчанию.
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	days := h.windowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}
	if days > maxSnapshotDays {
		days = maxSnapshotDays
	}
	team := r.URL.Query().Get("team")

	snapshot, err := h.ingest.Snapshot(r.Context(), days, team)
	if err != nil {
		h.log.Error().Err(err).Msg("events: не удалось построить сводку")
		infrahttp.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("events: запись ответа")
	}
}
