package domain

import "time"

// Digest описывает сводку одного прогона генерации.
type Digest struct {
	Date       time.Time `json:"date"`
	Overview   string    `json:"overview"`
	Highlights []string  `json:"highlights,omitempty"`
}

// AnalysisItem описывает один пункт командного анализа до публикации.
type AnalysisItem struct {
	Type       string  `json:"type"`
	Title      string  `json:"title"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

// TeamAnalysis содержит разбор активности одной команды за период.
type TeamAnalysis struct {
	Team      string         `json:"team"`
	Items     []AnalysisItem `json:"items,omitempty"`
	Blockers  []string       `json:"blockers,omitempty"`
	Decisions []string       `json:"decisions,omitempty"`
}

// MessageRef однозначно адресует опубликованное сообщение в Slack.
type MessageRef struct {
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

// IsZero сообщает, что ссылка не заполнена.
func (r MessageRef) IsZero() bool {
	return r.Channel == "" && r.TS == ""
}

// DigestItem представляет опубликованный пункт дайджеста.
// Создаётся один раз сразу после успешной публикации сообщения
// и далее не изменяется.
type DigestItem struct {
	ID         string
	RunID      string
	Date       time.Time
	Team       string
	ItemType   string
	Title      string
	Summary    string
	Confidence float64
	Ref        MessageRef
	CreatedAt  time.Time
}
