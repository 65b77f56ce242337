package ingestion_engine

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// ChunkText splits text into windows of size characters, each starting
// size-overlap characters after the previous one. Positions are counted in
// runes so multi-byte letters are never cut.
//
// A size <= 0 selects DefaultChunkSize. The overlap is clamped into
// [0, size-1] so the window always advances. Text no longer than size comes
// back as a single chunk; empty text yields one empty chunk.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	runes := []rune(text)
	n := len(runes)
	if n <= size {
		return []string{text}
	}

	step := size - overlap
	chunks := make([]string, 0, (n-overlap+step-1)/step)
	for start := 0; ; start += step {
		end := min(start+size, n)
		chunks = append(chunks, string(runes[start:end]))
		if end == n {
			break
		}
	}
	return chunks
}
