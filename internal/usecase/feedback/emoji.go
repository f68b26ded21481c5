package feedback

import "github.com/abhinavprkash/ThreadBrief/internal/domain"

// defaultEmojiMap — словарь реакций по умолчанию.
var defaultEmojiMap = map[string]domain.FeedbackType{
	"white_check_mark": domain.FeedbackPositive,
	"thumbsup":         domain.FeedbackPositive,
	"heavy_check_mark": domain.FeedbackPositive,
	"x":                domain.FeedbackNegative,
	"thumbsdown":       domain.FeedbackNegative,
	"jigsaw":           domain.FeedbackNeedsFollowup,
	"question":         domain.FeedbackNeedsFollowup,
	"no_bell":          domain.FeedbackSilence,
	"mute":             domain.FeedbackSilence,
}

// EmojiMapper переводит идентификатор реакции в тип обратной связи.
// Таблица собирается один раз при создании и дальше только читается.
type EmojiMapper struct {
	table map[string]domain.FeedbackType
}

// NewEmojiMapper собирает таблицу из словаря по умолчанию и операторских
// переопределений. Переопределение с неизвестным типом убирает реакцию
// из таблицы, так оператор может погасить реакцию по умолчанию.
func NewEmojiMapper(overrides map[string]string) *EmojiMapper {
	table := make(map[string]domain.FeedbackType, len(defaultEmojiMap)+len(overrides))
	for emoji, t := range defaultEmojiMap {
		table[emoji] = t
	}
	for emoji, raw := range overrides {
		t := domain.FeedbackType(raw)
		if !t.Valid() {
			delete(table, emoji)
			continue
		}
		table[emoji] = t
	}
	return &EmojiMapper{table: table}
}

// Resolve возвращает тип обратной связи для реакции.
// Неизвестные реакции не являются сигналом.
func (m *EmojiMapper) Resolve(reaction string) (domain.FeedbackType, bool) {
	t, ok := m.table[reaction]
	return t, ok
}
