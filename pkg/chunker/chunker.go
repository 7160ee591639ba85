// Package chunker cuts document text into fixed-size overlapping windows.
package chunker

type ChunkerConfig struct {
	Size    int // maximum chunk length in runes
	Overlap int // runes shared with the previous chunk
}

type Chunker struct {
	config ChunkerConfig
}

func NewWithConfig(config ChunkerConfig) Chunker {
	if config.Size == 0 {
		config.Size = 500
	}
	if config.Overlap < 0 {
		config.Overlap = 0
	}

	return Chunker{
		config: config,
	}
}

// Split cuts text into rune windows of at most Size, each window starting
// Size-Overlap runes after the previous one. The final window may be shorter.
// Windows are cut at exact offsets, not at word or sentence boundaries.
// Empty text yields no chunks; text within Size yields exactly one.
func (c Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.config.Size {
		return []string{text}
	}

	step := c.config.Size - c.config.Overlap
	if step <= 0 {
		step = 1
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.config.Size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// Size reports the configured window size.
func (c Chunker) Size() int {
	return c.config.Size
}

// Overlap reports the configured window overlap.
func (c Chunker) Overlap() int {
	return c.config.Overlap
}
