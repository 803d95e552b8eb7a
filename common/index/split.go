package index

import (
	"strings"
	"unicode/utf8"
)

// Split breaks text into chunks of at most size runes on whitespace boundaries.
// Consecutive chunks share up to overlap runes of trailing words. A single word
// longer than size becomes its own chunk.
func Split(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if size <= 0 {
		return []string{strings.Join(words, " ")}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var (
		chunks []string
		cur    []string
		curLen int
	)
	flush := func() {
		chunks = append(chunks, strings.Join(cur, " "))
		// carry trailing words into the next chunk
		var keep []string
		kept := 0
		for i := len(cur) - 1; i >= 0; i-- {
			n := utf8.RuneCountInString(cur[i])
			if kept+n+len(keep) > overlap {
				break
			}
			keep = append([]string{cur[i]}, keep...)
			kept += n
		}
		cur = keep
		curLen = joinedLen(keep)
	}

	for _, w := range words {
		n := utf8.RuneCountInString(w)
		add := n
		if len(cur) > 0 {
			add++
		}
		if len(cur) > 0 && curLen+add > size {
			before := len(cur)
			flush()
			// overlap alone must not swallow the whole budget
			if len(cur) == before {
				cur, curLen = nil, 0
			}
			add = n
			if len(cur) > 0 {
				add++
			}
			if curLen+add > size {
				cur, curLen = nil, 0
				add = n
			}
		}
		cur = append(cur, w)
		curLen += add
	}
	if len(cur) > 0 {
		chunks = append(chunks, strings.Join(cur, " "))
	}
	return chunks
}

func joinedLen(words []string) int {
	if len(words) == 0 {
		return 0
	}
	n := len(words) - 1
	for _, w := range words {
		n += utf8.RuneCountInString(w)
	}
	return n
}
