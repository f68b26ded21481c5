package domain

import "time"

// FeedbackType классифицирует реакцию читателя на пункт дайджеста.
type FeedbackType string

const (
	FeedbackPositive      FeedbackType = "positive"
	FeedbackNegative      FeedbackType = "negative"
	FeedbackNeedsFollowup FeedbackType = "needs_followup"
	FeedbackSilence       FeedbackType = "silence"
)

// Valid проверяет, что значение входит в словарь типов обратной связи.
func (t FeedbackType) Valid() bool {
	switch t {
	case FeedbackPositive, FeedbackNegative, FeedbackNeedsFollowup, FeedbackSilence:
		return true
	}
	return false
}

// FeedbackEvent фиксирует одну принятую реакцию пользователя.
// Пара (UserID, DigestItemID) уникальна: повторные реакции того же
// пользователя на тот же пункт не создают новых событий.
type FeedbackEvent struct {
	ID           int64
	DigestItemID string
	UserID       string
	Team         string
	Type         FeedbackType
	CreatedAt    time.Time
}

// Snapshot агрегирует обратную связь за окно наблюдения.
// AccuracyRatio считается как positive/(positive+negative);
// при нулевом знаменателе равен нулю.
type Snapshot struct {
	WindowDays          int                  `json:"window_days"`
	Team                string               `json:"team,omitempty"`
	TotalDigestItems    int                  `json:"total_digest_items"`
	TotalFeedbackEvents int                  `json:"total_feedback_events"`
	CountsByType        map[FeedbackType]int `json:"counts_by_type"`
	AccuracyRatio       float64              `json:"accuracy_ratio"`
	GeneratedAt         time.Time            `json:"generated_at"`
}
