package compactor

import (
	"context"
	"math"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/rcliao/memscope/internal/model"
)

// Summarizer condenses records, given newest first, into at most maxChars runes.
type Summarizer interface {
	Summarize(ctx context.Context, records []model.Record, maxChars int) (string, error)
}

// Concat joins record contents with newlines, newest first, and truncates.
type Concat struct{}

func (Concat) Summarize(_ context.Context, records []model.Record, maxChars int) (string, error) {
	parts := make([]string, len(records))
	for i, r := range records {
		parts[i] = r.Content
	}
	return truncate(strings.Join(parts, "\n"), maxChars), nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Frequency is an extractive summarizer: it ranks sentences by the
// normalised frequency of their non-stopword tokens and keeps the best ones,
// in their original order, while they fit the budget.
type Frequency struct {
	tokenPattern    *regexp.Regexp
	sentencePattern *regexp.Regexp
	stopwords       map[string]struct{}
}

// NewFrequency creates a frequency-based sentence ranking summarizer.
func NewFrequency() *Frequency {
	return &Frequency{
		tokenPattern:    regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		sentencePattern: regexp.MustCompile(`[^.!?\n]+[.!?]*`),
		stopwords:       defaultStopwords(),
	}
}

func (s *Frequency) Summarize(_ context.Context, records []model.Record, maxChars int) (string, error) {
	// Oldest first so the kept sentences read chronologically.
	var sentences []string
	for _, r := range slices.Backward(records) {
		for _, sent := range s.sentencePattern.FindAllString(r.Content, -1) {
			if sent = strings.TrimSpace(sent); sent != "" {
				sentences = append(sentences, sent)
			}
		}
	}
	if len(sentences) == 0 {
		return "", nil
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.tokens(sent) {
			if _, ok := s.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := s.tokens(sent)
		score := 0.0
		for _, tok := range toks {
			score += freq[tok]
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(toks)); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	var selected []int
	used := 0
	for _, p := range scores {
		n := len([]rune(sentences[p.idx]))
		if len(selected) > 0 {
			n++ // joining space
		}
		if used+n > maxChars {
			continue
		}
		selected = append(selected, p.idx)
		used += n
	}
	if len(selected) == 0 {
		return truncate(sentences[scores[0].idx], maxChars), nil
	}

	sort.Ints(selected)
	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}

func (s *Frequency) tokens(text string) []string {
	return s.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// ByName returns a built-in summarizer.
func ByName(name string) (Summarizer, bool) {
	switch name {
	case "", "concat":
		return Concat{}, true
	case "frequency":
		return NewFrequency(), true
	default:
		return nil, false
	}
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about",
		"between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too",
		"very", "can", "will", "just", "don", "should", "now", "i", "you", "we", "they", "he", "she", "my", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
