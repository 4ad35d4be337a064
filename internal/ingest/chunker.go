package ingest

import "strings"

const (
	DefaultChunkSize    = 750
	DefaultChunkOverlap = 8
	DefaultSeparator    = "\n\n"
)

// Chunker splits text into pieces of at most Size characters.
//
// Text is split on Separator and adjacent pieces are merged back together
// while they fit. When a chunk is emitted, its trailing pieces whose joined
// length is at most Overlap are carried into the next chunk. A single piece
// longer than Size is cut into Size-character windows that share Overlap
// characters.
type Chunker struct {
	Size      int
	Overlap   int
	Separator string
}

// NewChunker fills zero fields with the defaults.
func NewChunker(size, overlap int, separator string) Chunker {
	c := Chunker{Size: size, Overlap: overlap, Separator: separator}
	if c.Size <= 0 {
		c.Size = DefaultChunkSize
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		c.Overlap = DefaultChunkOverlap
	}
	if c.Separator == "" {
		c.Separator = DefaultSeparator
	}
	return c
}

func (c Chunker) Split(text string) []string {
	c = NewChunker(c.Size, c.Overlap, c.Separator)
	sepLen := runeLen(c.Separator)

	var (
		chunks  []string
		current []string
		total   int
		pending bool
	)
	joinedLen := func(pieces []string) int {
		n := 0
		for i, p := range pieces {
			if i > 0 {
				n += sepLen
			}
			n += runeLen(p)
		}
		return n
	}
	flush := func() {
		if !pending {
			return
		}
		pending = false
		chunks = append(chunks, strings.Join(current, c.Separator))
		// Keep the longest suffix that fits inside the overlap.
		for len(current) > 0 && joinedLen(current) > c.Overlap {
			current = current[1:]
		}
		current = append([]string(nil), current...)
		total = joinedLen(current)
	}

	for _, raw := range strings.Split(text, c.Separator) {
		piece := strings.TrimSpace(raw)
		if piece == "" {
			continue
		}
		n := runeLen(piece)
		if n > c.Size {
			flush()
			current, total = nil, 0
			chunks = append(chunks, c.hardSplit(piece)...)
			continue
		}

		add := n
		if len(current) > 0 {
			add += sepLen
		}
		if total+add > c.Size {
			flush()
			add = n
			if len(current) > 0 {
				add += sepLen
			}
			if total+add > c.Size {
				current, total, add = nil, 0, n
			}
		}
		current = append(current, piece)
		total += add
		pending = true
	}
	flush()
	return chunks
}

func (c Chunker) hardSplit(piece string) []string {
	runes := []rune(piece)
	step := c.Size - c.Overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + c.Size
		if end >= len(runes) {
			out = append(out, strings.TrimSpace(string(runes[start:])))
			break
		}
		out = append(out, strings.TrimSpace(string(runes[start:end])))
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
