package tts

// SplitText cuts text into consecutive pieces of exactly limit characters,
// the last one shorter. Cuts fall on character boundaries but may land
// mid-word. Concatenating the result yields text unchanged.
func SplitText(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 {
		return []string{text}
	}

	chunks := make([]string, 0, len(text)/limit+1)
	start, count := 0, 0
	for i := range text {
		if count == limit {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}

// CharCount returns the number of characters SplitText counts in text.
func CharCount(text string) int {
	n := 0
	for range text {
		n++
	}
	return n
}
