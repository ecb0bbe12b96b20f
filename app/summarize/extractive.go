package summarize

import (
	"context"
	"strings"
	"unicode"
)

const DefaultMaxChars = 480

// Extractive keeps the leading sentences of the text that fit in MaxChars.
// It never rewrites tokens, so entity checks on its output only fail when
// an entity sits past the budget.
type Extractive struct {
	MaxChars int
}

func NewExtractive(maxChars int) *Extractive {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Extractive{MaxChars: maxChars}
}

func (e *Extractive) Summarize(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text = strings.Join(strings.Fields(text), " ")
	if len([]rune(text)) <= e.MaxChars {
		return text, nil
	}

	var b strings.Builder
	for _, sentence := range splitSentences(text) {
		if b.Len() > 0 && len([]rune(b.String()))+1+len([]rune(sentence)) > e.MaxChars {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentence)
	}

	summary := b.String()
	if runes := []rune(summary); len(runes) > e.MaxChars {
		summary = strings.TrimRightFunc(string(runes[:e.MaxChars-1]), unicode.IsSpace) + "…"
	}
	return summary, nil
}

// splitSentences breaks after '.', '!' or '?' followed by a space. Decimal
// points such as "v1.2" are not followed by a space and stay intact.
func splitSentences(text string) []string {
	var (
		sentences []string
		start     int
	)
	runes := []rune(text)
	for i, r := range runes {
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && runes[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(string(runes[start:i+1])))
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}
