// Package voice holds text shaping shared by the speech adapters.
package voice

import "strings"

// DefaultMaxChunk bounds one synthesis chunk when a sentence runs long.
const DefaultMaxChunk = 240

var abbreviations = map[string]struct{}{
	"dr.": {}, "mr.": {}, "mrs.": {}, "ms.": {}, "jr.": {}, "sr.": {},
	"prof.": {}, "inc.": {}, "ltd.": {}, "corp.": {}, "co.": {}, "vs.": {},
	"etc.": {}, "i.e.": {}, "e.g.": {}, "a.m.": {}, "p.m.": {}, "u.s.": {},
}

// SplitSentences cuts a spoken reply into sentence-sized chunks so synthesis
// can start on the first sentence while later ones are still queued. A chunk
// longer than maxChunk is broken at the last space before the limit.
// maxChunk <= 0 uses DefaultMaxChunk.
func SplitSentences(text string, maxChunk int) []string {
	if maxChunk <= 0 {
		maxChunk = DefaultMaxChunk
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		if !endsSentence(text, i) {
			continue
		}
		out = appendChunk(out, text[start:i+1], maxChunk)
		start = i + 1
	}
	if start < len(text) {
		out = appendChunk(out, text[start:], maxChunk)
	}
	return out
}

func appendChunk(out []string, s string, maxChunk int) []string {
	s = strings.TrimSpace(s)
	for len(s) > maxChunk {
		cut := strings.LastIndexByte(s[:maxChunk], ' ')
		if cut <= 0 {
			cut = maxChunk
		}
		out = append(out, strings.TrimSpace(s[:cut]))
		s = strings.TrimSpace(s[cut:])
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

// endsSentence reports whether text[i] is terminal punctuation followed by
// whitespace or the end of the text.
func endsSentence(text string, i int) bool {
	switch text[i] {
	case '.', '!', '?':
	default:
		return false
	}
	if i+1 < len(text) && !isSpace(text[i+1]) {
		return false
	}
	if text[i] != '.' {
		return true
	}

	word := lastWord(text[:i+1])
	if _, ok := abbreviations[strings.ToLower(word)]; ok {
		return false
	}
	// Initials: "J. Smith".
	if len(word) == 2 && word[0] >= 'A' && word[0] <= 'Z' {
		return false
	}
	return true
}

func lastWord(s string) string {
	if i := strings.LastIndexAny(s, " \t\r\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}
