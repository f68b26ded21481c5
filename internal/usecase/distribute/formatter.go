package distribute

import (
	"fmt"
	"strings"
	"time"

	"github.com/abhinavprkash/ThreadBrief/internal/domain"
)

// DigestItemMessage — подготовленное к публикации сообщение одного пункта.
type DigestItemMessage struct {
	ItemID     string
	Team       string
	ItemType   string
	Title      string
	Summary    string
	Text       string
	Blocks     []domain.Block
	Confidence float64
}

const fyiDividerText = "📋 Lower Confidence / FYI"

func fyiDividerBlocks() []domain.Block {
	return []domain.Block{domain.SectionBlock("*📋 Lower Confidence / FYI*\n_These items may need verification:_")}
}

// FormatHeader собирает заголовочное сообщение прогона.
func FormatHeader(digest domain.Digest, analyses []domain.TeamAnalysis) (string, []domain.Block) {
	date := digest.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	totalItems := 0
	for _, ta := range analyses {
		totalItems += len(ta.Items)
	}
	text := fmt.Sprintf("📣 Daily Digest — %s: %d teams, %d items", date.Format("2006-01-02"), len(analyses), totalItems)

	var body strings.Builder
	fmt.Fprintf(&body, "*📣 Daily Digest — %s*", date.Format("2006-01-02"))
	if overview := strings.TrimSpace(digest.Overview); overview != "" {
		body.WriteString("\n" + overview)
	}
	blocks := []domain.Block{domain.SectionBlock(body.String())}

	if len(digest.Highlights) > 0 {
		var hl strings.Builder
		hl.WriteString("*Highlights*")
		for _, h := range digest.Highlights {
			trimmed := strings.TrimSpace(h)
			if trimmed == "" {
				continue
			}
			hl.WriteString("\n• " + trimmed)
		}
		blocks = append(blocks, domain.SectionBlock(hl.String()))
	}
	return text, blocks
}

// FormatItems раскладывает пункты всех команд по корзинам уверенности
// и готовит сообщения в порядке генерации. Идентификатор пункта
// детерминирован: прогон, команда и порядковый номер внутри команды.
func FormatItems(analyses []domain.TeamAnalysis, runID string, highThreshold, lowThreshold float64) (high, low []DigestItemMessage, excluded []domain.ExcludedItem) {
	for _, ta := range analyses {
		slug := teamSlug(ta.Team)
		for idx, item := range ta.Items {
			if item.Confidence < lowThreshold {
				excluded = append(excluded, domain.ExcludedItem{Team: ta.Team, Title: item.Title, Confidence: item.Confidence})
				continue
			}
			msg := DigestItemMessage{
				ItemID:     fmt.Sprintf("%s_%s_%d", runID, slug, idx),
				Team:       ta.Team,
				ItemType:   item.Type,
				Title:      item.Title,
				Summary:    item.Summary,
				Text:       formatItemText(ta.Team, item),
				Confidence: item.Confidence,
			}
			msg.Blocks = []domain.Block{domain.SectionBlock(msg.Text)}
			if item.Confidence >= highThreshold {
				high = append(high, msg)
			} else {
				low = append(low, msg)
			}
		}
	}
	return high, low, excluded
}

func formatItemText(team string, item domain.AnalysisItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*", typeEmoji(item.Type), item.Title)
	if summary := strings.TrimSpace(item.Summary); summary != "" {
		b.WriteString("\n" + summary)
	}
	fmt.Fprintf(&b, "\n_%s · confidence %.2f_", team, item.Confidence)
	return b.String()
}

// FormatTeamDetails собирает развёрнутый разбор для канала команды.
func FormatTeamDetails(ta domain.TeamAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s — Daily Breakdown*", ta.Team)
	if len(ta.Items) > 0 {
		b.WriteString("\n\n*Items*")
		for _, item := range ta.Items {
			fmt.Fprintf(&b, "\n• %s %s", typeEmoji(item.Type), item.Title)
			if summary := strings.TrimSpace(item.Summary); summary != "" {
				b.WriteString(" — " + summary)
			}
		}
	}
	if len(ta.Blockers) > 0 {
		b.WriteString("\n\n*Blockers*")
		for _, blocker := range ta.Blockers {
			b.WriteString("\n• " + blocker)
		}
	}
	if len(ta.Decisions) > 0 {
		b.WriteString("\n\n*Decisions*")
		for _, decision := range ta.Decisions {
			b.WriteString("\n• " + decision)
		}
	}
	return b.String()
}

// FormatLeadershipDM собирает сводку для руководства: обзор прогона
// и блокеры с решениями всех команд одним сообщением.
func FormatLeadershipDM(digest domain.Digest, analyses []domain.TeamAnalysis) string {
	date := digest.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*Executive Summary — %s*", date.Format("2006-01-02"))
	if overview := strings.TrimSpace(digest.Overview); overview != "" {
		b.WriteString("\n" + overview)
	}

	var blockers, decisions []string
	for _, ta := range analyses {
		for _, blocker := range ta.Blockers {
			blockers = append(blockers, fmt.Sprintf("[%s] %s", ta.Team, blocker))
		}
		for _, decision := range ta.Decisions {
			decisions = append(decisions, fmt.Sprintf("[%s] %s", ta.Team, decision))
		}
	}
	if len(blockers) > 0 {
		b.WriteString("\n\n*Blockers*")
		for _, line := range blockers {
			b.WriteString("\n• " + line)
		}
	}
	if len(decisions) > 0 {
		b.WriteString("\n\n*Decisions*")
		for _, line := range decisions {
			b.WriteString("\n• " + line)
		}
	}
	return b.String()
}

// FormatMainDigest собирает весь дайджест одним сообщением.
// Исторический формат, остаётся ради предпросмотра.
func FormatMainDigest(digest domain.Digest, analyses []domain.TeamAnalysis) (string, []domain.Block) {
	text, blocks := FormatHeader(digest, analyses)
	for _, ta := range analyses {
		if len(ta.Items) == 0 {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "*%s*", ta.Team)
		for _, item := range ta.Items {
			fmt.Fprintf(&b, "\n• %s %s", typeEmoji(item.Type), item.Title)
		}
		blocks = append(blocks, domain.SectionBlock(b.String()))
	}
	return text, blocks
}

func typeEmoji(itemType string) string {
	switch strings.ToLower(itemType) {
	case "blocker":
		return "🚧"
	case "decision":
		return "🟢"
	case "risk":
		return "⚠️"
	default:
		return "📌"
	}
}

func teamSlug(team string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(team)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "team"
	}
	return b.String()
}
