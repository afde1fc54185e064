package graph

// sentenceTerminators end a sentence for chunk-boundary purposes. Covers
// both ASCII and CJK punctuation since source documents are mixed-language.
var sentenceTerminators = map[rune]bool{
	'.': true, '!': true, '?': true, '\n': true,
	'。': true, '！': true, '？': true, '；': true,
}

// ChunkText splits text into windows of at most size characters with overlap
// characters carried between consecutive windows. When the tail of a window
// contains a sentence terminator past 0.3*size, the window is cut there
// instead of at the hard boundary.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	minCut := int(0.3 * float64(size))
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		for i := end - 1; i > start+minCut; i-- {
			if sentenceTerminators[runes[i]] {
				end = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[start:end]))
		next := end - overlap
		if next <= start {
			// A large overlap plus an early sentence cut must still advance.
			next = end
		}
		start = next
	}
	return chunks
}
