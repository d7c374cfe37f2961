// internal/words/words.go
//
// Normalization of submitted story words.
//
// Responsibilities:
//   - Turn client-supplied tokens into a canonical word slice (Normalize).
//   - Split free text into words (Split) for clients that send a sentence.
//
// Rules:
//   - Each token is trimmed; tokens containing inner whitespace are split.
//   - Empty tokens are dropped.
//   - Case and punctuation are preserved; the story is free text.
package words

import (
	"strings"
	"unicode"
)

// Normalize returns the words contained in tokens in order.
// The result is never nil so it encodes as an empty JSON array.
func Normalize(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, Split(t)...)
	}
	return out
}

// Split breaks s on any Unicode whitespace.
func Split(s string) []string {
	return strings.FieldsFunc(s, unicode.IsSpace)
}
