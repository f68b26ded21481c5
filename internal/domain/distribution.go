package domain

// ConfidenceBucket определяет судьбу пункта при рассылке.
type ConfidenceBucket string

const (
	// BucketMain — пункт публикуется в основной части дайджеста.
	BucketMain ConfidenceBucket = "main"
	// BucketFYI — пункт публикуется под разделителем пониженной уверенности.
	BucketFYI ConfidenceBucket = "fyi"
	// BucketExcluded — пункт не публикуется вовсе.
	BucketExcluded ConfidenceBucket = "excluded"
)

// Block — один блок разметки сообщения Slack (Block Kit).
type Block struct {
	Type string     `json:"type"`
	Text *BlockText `json:"text,omitempty"`
}

// BlockText — текстовая часть блока.
type BlockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SectionBlock собирает секцию с mrkdwn-текстом.
func SectionBlock(text string) Block {
	return Block{Type: "section", Text: &BlockText{Type: "mrkdwn", Text: text}}
}

// DividerBlock собирает горизонтальный разделитель.
func DividerBlock() Block {
	return Block{Type: "divider"}
}

// PostResult описывает исход публикации одного сообщения.
type PostResult struct {
	OK  bool       `json:"ok"`
	Ref MessageRef `json:"ref,omitempty"`
}

// ItemPostResult описывает исход публикации одного пункта дайджеста.
type ItemPostResult struct {
	ItemID     string           `json:"item_id"`
	Team       string           `json:"team"`
	Bucket     ConfidenceBucket `json:"bucket"`
	Confidence float64          `json:"confidence"`
	Post       PostResult       `json:"post"`
	Stored     bool             `json:"stored"`
}

// ExcludedItem описывает пункт, отсечённый порогом уверенности.
type ExcludedItem struct {
	Team       string  `json:"team"`
	Title      string  `json:"title"`
	Confidence float64 `json:"confidence"`
}

// DistributionResult агрегирует итог одного прогона рассылки.
// Ошибки отдельных шагов собираются в Errors и не прерывают прогон.
type DistributionResult struct {
	RunID       string                `json:"run_id"`
	Header      PostResult            `json:"header"`
	Items       []ItemPostResult      `json:"items"`
	TeamPosts   map[string]PostResult `json:"team_posts,omitempty"`
	DMs         map[string]PostResult `json:"dms,omitempty"`
	Excluded    []ExcludedItem        `json:"excluded,omitempty"`
	ItemsStored int                   `json:"items_stored"`
	Errors      []string              `json:"errors,omitempty"`
}

// MessagePreview — отрисованное сообщение без отправки.
type MessagePreview struct {
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks,omitempty"`
}

// ItemPreview — отрисованный пункт дайджеста без отправки.
type ItemPreview struct {
	ItemID     string           `json:"item_id"`
	Team       string           `json:"team"`
	Title      string           `json:"title"`
	Confidence float64          `json:"confidence"`
	Bucket     ConfidenceBucket `json:"bucket"`
	Preview    MessagePreview   `json:"preview"`
}

// DistributionPreview показывает, что именно ушло бы в каналы,
// не публикуя ни одного сообщения.
type DistributionPreview struct {
	RunID        string            `json:"run_id"`
	Header       MessagePreview    `json:"header"`
	MainDigest   MessagePreview    `json:"main_digest"`
	Items        []ItemPreview     `json:"items"`
	Excluded     []ExcludedItem    `json:"excluded,omitempty"`
	TeamDetails  map[string]string `json:"team_details,omitempty"`
	LeadershipDM string            `json:"leadership_dm,omitempty"`
}
