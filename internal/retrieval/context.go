package retrieval

import "strings"

// chunkSeparator joins packed chunk texts.
const chunkSeparator = "\n\n"

// AssembleContext packs result texts, in order, into one context block of at
// most maxLength characters. Packing stops at the first chunk that would
// overflow; Truncated is true iff at least one candidate was dropped for
// length. Every included chunk contributes a citation entry to Sources.
//
// TotalLength never exceeds maxLength.
func AssembleContext(results []*SearchResult, maxLength int) *ContextBlock {
	block := &ContextBlock{Sources: []ContextSource{}}
	if maxLength <= 0 || len(results) == 0 {
		return block
	}

	var b strings.Builder
	for _, r := range results {
		if r.Chunk == nil {
			continue
		}

		addition := len(r.Chunk.Text)
		if b.Len() > 0 {
			addition += len(chunkSeparator)
		}
		if b.Len()+addition > maxLength {
			block.Truncated = true
			break
		}

		if b.Len() > 0 {
			b.WriteString(chunkSeparator)
		}
		b.WriteString(r.Chunk.Text)

		block.Sources = append(block.Sources, ContextSource{
			ChunkID:   r.ChunkID,
			SourceRef: r.Chunk.SourceID,
			Score:     r.Score,
		})
	}

	block.Text = b.String()
	block.TotalLength = len(block.Text)
	return block
}
