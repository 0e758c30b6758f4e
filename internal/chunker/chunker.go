// Package chunker splits long content into bounded, overlapping chunks that
// never end in the middle of a word.
package chunker

import (
	"errors"
	"maps"
	"slices"

	"github.com/samber/oops"

	"github.com/rcliao/memscope/internal/model"
)

const (
	DefaultSize      = 512
	DefaultOverlap   = 50
	DefaultSeparator = " "
)

// ErrInvalidOptions is returned by New for options that cannot make progress.
var ErrInvalidOptions = errors.New("invalid chunker options")

// Options configures chunking behavior. Size and Overlap are measured in runes.
type Options struct {
	Size      int
	Overlap   int
	Separator string
}

// DefaultOptions returns default chunking options.
func DefaultOptions() Options {
	return Options{
		Size:      DefaultSize,
		Overlap:   DefaultOverlap,
		Separator: DefaultSeparator,
	}
}

// Chunker splits text with fixed options. It holds no mutable state and is
// safe for concurrent use.
type Chunker struct {
	opts Options
	sep  []rune
}

// New validates opts. An empty Separator falls back to DefaultSeparator.
func New(opts Options) (*Chunker, error) {
	if opts.Separator == "" {
		opts.Separator = DefaultSeparator
	}
	errb := oops.Code("chunker.invalid_options").
		With("size", opts.Size).
		With("overlap", opts.Overlap)

	switch {
	case opts.Size <= 0:
		return nil, errb.Wrapf(ErrInvalidOptions, "chunk size must be positive, got %d", opts.Size)
	case opts.Overlap < 0:
		return nil, errb.Wrapf(ErrInvalidOptions, "chunk overlap must not be negative, got %d", opts.Overlap)
	case opts.Overlap >= opts.Size:
		return nil, errb.Wrapf(ErrInvalidOptions, "chunk overlap %d must be smaller than size %d", opts.Overlap, opts.Size)
	}
	return &Chunker{opts: opts, sep: []rune(opts.Separator)}, nil
}

// Options returns the validated options.
func (c *Chunker) Options() Options { return c.opts }

// Split cuts text into chunks. Text that fits in one chunk is returned
// unchanged. Every chunk carries parent's metadata plus its index and the
// chunk total; empty text yields no chunks.
func (c *Chunker) Split(text string, parent map[string]any) []model.Chunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	if n <= c.opts.Size {
		return []model.Chunk{c.chunk(text, 0, 1, 0, n, parent)}
	}

	type span struct{ start, end int }
	var spans []span
	start, prevEnd := 0, 0
	for {
		end := min(start+c.opts.Size, n)
		if end < n && c.insideWord(runes, end) {
			// A break at or before the previous edge would emit a chunk made
			// only of overlap.
			if cut := c.lastBreak(runes, start, end); cut > prevEnd {
				end = cut
			}
		}
		spans = append(spans, span{start, end})
		prevEnd = end
		if end >= n {
			break
		}

		next := max(end-c.opts.Overlap, 0)
		if next <= start {
			next = end
		}
		start = next
	}

	chunks := make([]model.Chunk, len(spans))
	for i, sp := range spans {
		chunks[i] = c.chunk(string(runes[sp.start:sp.end]), i, len(spans), sp.start, sp.end, parent)
	}
	return chunks
}

func (c *Chunker) chunk(content string, index, total, start, end int, parent map[string]any) model.Chunk {
	meta := make(map[string]any, len(parent)+2)
	maps.Copy(meta, parent)
	meta[model.MetaChunkIndex] = index
	meta[model.MetaTotalChunks] = total
	return model.Chunk{
		Content:  content,
		Index:    index,
		Total:    total,
		Start:    start,
		End:      end,
		Metadata: meta,
	}
}

// insideWord reports whether cutting before position i would split a word:
// neither the rune at i starts a separator nor the runes before i end one.
func (c *Chunker) insideWord(runes []rune, i int) bool {
	return !c.sepAt(runes, i) && !c.sepAt(runes, i-len(c.sep))
}

// lastBreak returns the largest position in (start, end] that directly
// follows a separator, or -1.
func (c *Chunker) lastBreak(runes []rune, start, end int) int {
	for i := end - len(c.sep); i >= start; i-- {
		if c.sepAt(runes, i) {
			return i + len(c.sep)
		}
	}
	return -1
}

func (c *Chunker) sepAt(runes []rune, i int) bool {
	if i < 0 || i+len(c.sep) > len(runes) {
		return false
	}
	return slices.Equal(runes[i:i+len(c.sep)], c.sep)
}
