package providers

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cliphaven/cliphaven/pkg/models"
)

const (
	answerSystemPrompt = "You are a helpful assistant answering questions about the user's clipboard history. " +
		"Answer concisely and only from the provided clipboard items. " +
		"If the items do not contain the answer, say so."

	tagSystemPrompt = "You label clipboard content. Reply with 3 to 5 short lowercase tags, " +
		"comma-separated, and nothing else."

	imagePrompt = "Describe this image in one or two sentences, then list 3 to 5 lowercase tags on a final line, comma-separated."
)

// Context limits keep prompts bounded regardless of clipboard size.
const (
	maxContextItems = 10
	maxItemChars    = 2000
	maxTagInput     = 4000
)

// answerPrompt renders the question with up to maxContextItems items.
func answerPrompt(question string, items []models.Item) string {
	var b strings.Builder
	if len(items) > 0 {
		b.WriteString("Clipboard items:\n")
		for i, it := range items {
			if i == maxContextItems {
				break
			}
			fmt.Fprintf(&b, "\n[%d]", i+1)
			if it.Title != "" {
				fmt.Fprintf(&b, " %s", it.Title)
			}
			if it.SourceApp != "" {
				fmt.Fprintf(&b, " (from %s)", it.SourceApp)
			}
			b.WriteString("\n")
			b.WriteString(truncate(it.Content, maxItemChars))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func tagPrompt(content string) string {
	return "Content:\n" + truncate(content, maxTagInput)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}

// EstimateTokens approximates the token count of the given texts as one
// token per four characters, rounded up.
func EstimateTokens(texts ...string) int {
	chars := 0
	for _, t := range texts {
		chars += utf8.RuneCountInString(t)
	}
	return (chars + 3) / 4
}

// fillUsage estimates token counts when the backend reported none.
func fillUsage(u *models.TokenUsage, prompt, output string) {
	if u.InputTokens == 0 && u.OutputTokens == 0 {
		u.InputTokens = int64(EstimateTokens(prompt))
		u.OutputTokens = int64(EstimateTokens(output))
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
}
