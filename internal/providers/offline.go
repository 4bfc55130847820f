package providers

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/cliphaven/cliphaven/pkg/models"
)

// OfflineID identifies the in-process fallback provider.
const OfflineID = "offline"

const (
	offlineMaxTags      = 5
	offlineMinWordLen   = 3
	offlineMaxSentences = 3
)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true,
	"you": true, "all": true, "any": true, "can": true, "had": true, "her": true,
	"was": true, "one": true, "our": true, "out": true, "has": true, "have": true,
	"this": true, "that": true, "with": true, "from": true, "they": true, "will": true,
	"would": true, "there": true, "their": true, "what": true, "about": true, "which": true,
	"when": true, "your": true, "into": true, "than": true, "then": true, "them": true,
	"these": true, "some": true, "could": true, "also": true, "been": true, "were": true,
	"http": true, "https": true, "www": true, "com": true,
}

// Offline produces tags and answers without any model. It is always
// available and never leaves the process.
type Offline struct{}

// NewOffline creates the offline provider.
func NewOffline() *Offline { return &Offline{} }

func (*Offline) Descriptor() models.ProviderDescriptor {
	return models.ProviderDescriptor{
		ID:           OfflineID,
		DisplayName:  "Offline",
		Locality:     models.LocalityLocal,
		Capabilities: []models.Capability{models.CapTextGeneration, models.CapTagging},
		Models:       []string{"keyword-extractor"},
	}
}

func (*Offline) IsAvailable(context.Context) bool { return true }

// GenerateTags returns the most frequent non-stopword terms, ties broken by
// first occurrence.
func (*Offline) GenerateTags(ctx context.Context, content string) (*models.TagResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	words := tokenize(content)
	counts := make(map[string]int)
	first := make(map[string]int)
	for i, w := range words {
		if len(w) < offlineMinWordLen || stopwords[w] || isNumber(w) {
			continue
		}
		if _, ok := first[w]; !ok {
			first[w] = i
		}
		counts[w]++
	}

	terms := make([]string, 0, len(counts))
	for w := range counts {
		terms = append(terms, w)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return first[terms[i]] < first[terms[j]]
	})
	if len(terms) > offlineMaxTags {
		terms = terms[:offlineMaxTags]
	}

	raw := strings.Join(terms, ",")
	usage := models.TokenUsage{}
	fillUsage(&usage, content, raw)
	return &models.TagResult{Provider: OfflineID, Tags: ParseTags(raw), Usage: usage}, nil
}

// GenerateAnswer extracts the sentences of the context items that share the
// most terms with the question.
func (*Offline) GenerateAnswer(ctx context.Context, question string, contextItems []models.Item) (*models.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	queryTerms := make(map[string]bool)
	for _, w := range tokenize(question) {
		if len(w) >= offlineMinWordLen && !stopwords[w] {
			queryTerms[w] = true
		}
	}

	type scored struct {
		text  string
		score int
		order int
	}
	var candidates []scored
	for _, it := range contextItems {
		for _, s := range splitSentences(it.Content) {
			score := 0
			for _, w := range tokenize(s) {
				if queryTerms[w] {
					score++
				}
			}
			if score > 0 {
				candidates = append(candidates, scored{text: s, score: score, order: len(candidates)})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > offlineMaxSentences {
		candidates = candidates[:offlineMaxSentences]
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].order < candidates[j].order })

	var answer string
	switch {
	case len(candidates) > 0:
		parts := make([]string, len(candidates))
		for i, c := range candidates {
			parts[i] = c.text
		}
		answer = strings.Join(parts, " ")
	case len(contextItems) > 0:
		answer = "No clipboard item matches the question. Most recent item: " + truncate(contextItems[0].Content, 200)
	default:
		answer = "No clipboard items were provided to answer from."
	}

	usage := models.TokenUsage{}
	fillUsage(&usage, question, answer)
	return &models.Completion{
		ID:        uuid.New().String(),
		Provider:  OfflineID,
		Model:     "keyword-extractor",
		Content:   answer,
		Usage:     usage,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// tokenize lower-cases s and splits it on anything but letters and digits.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// splitSentences splits on terminal punctuation followed by whitespace, and
// on newlines.
func splitSentences(s string) []string {
	var out []string
	runes := []rune(s)
	begin := 0
	for i, r := range runes {
		end := false
		switch r {
		case '\n':
			end = true
		case '.', '!', '?':
			end = i+1 == len(runes) || unicode.IsSpace(runes[i+1])
		}
		if end {
			if t := strings.TrimSpace(string(runes[begin : i+1])); t != "" {
				out = append(out, t)
			}
			begin = i + 1
		}
	}
	if t := strings.TrimSpace(string(runes[begin:])); t != "" {
		out = append(out, t)
	}
	return out
}
