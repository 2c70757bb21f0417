// Package chunker splits raw text into bounded-size segments along sentence
// boundaries, falling back to character splitting for sentences that are
// longer than the limit on their own.
package chunker

import (
	"strings"
	"unicode"
)

// sentence-terminal runes, both wide and ASCII forms
var terminators = map[rune]struct{}{
	'。': {}, '！': {}, '？': {},
	'.': {}, '!': {}, '?': {},
}

// Split cuts text into segments of at most maxBytes bytes. Sentences are the
// primary unit; a sentence that alone exceeds maxBytes is split by rune count.
// Segment order matches source order. Empty or whitespace-only input yields
// nil.
func Split(text string, maxBytes int) []string {
	if maxBytes <= 0 || strings.TrimSpace(text) == "" {
		return nil
	}
	var chunks []string
	var current strings.Builder
	for _, sentence := range splitSentences(text) {
		if current.Len()+len(sentence) > maxBytes && current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(sentence)
		current.WriteByte(' ')
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	// A single sentence may still exceed the limit; cut those by characters.
	var final []string
	for _, chunk := range chunks {
		if len(chunk) > maxBytes {
			final = append(final, splitByRunes(chunk, maxBytes)...)
			continue
		}
		final = append(final, chunk)
	}
	return final
}

// splitSentences breaks text after any terminator that is followed by
// whitespace. The terminator stays with its sentence; the separating
// whitespace is dropped.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)
		if _, ok := terminators[r]; !ok {
			continue
		}
		if i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		sentences = append(sentences, current.String())
		current.Reset()
		for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			i++
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

// splitByRunes cuts along rune boundaries so multi-byte characters are never
// torn apart; each piece stays within maxBytes.
func splitByRunes(chunk string, maxBytes int) []string {
	var pieces []string
	var current strings.Builder
	for _, r := range chunk {
		if current.Len()+len(string(r)) > maxBytes && current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}
