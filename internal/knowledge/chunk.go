// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

// Split breaks text into chunks of about size characters. Paragraphs are
// kept whole when they fit; longer paragraphs are cut at word boundaries.
// Each chunk after the first starts with the last overlap characters of the
// previous one, trimmed forward to a word boundary.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() string {
		done := strings.TrimSpace(cur.String())
		if done != "" {
			chunks = append(chunks, done)
		}
		cur.Reset()
		curLen = 0
		return done
	}

	for _, para := range paragraphs(text) {
		for _, piece := range splitLong(para, size) {
			n := utf8.RuneCountInString(piece)
			if curLen > 0 && curLen+2+n > size {
				prev := flush()
				if tail := tailWords(prev, overlap); tail != "" {
					cur.WriteString(tail)
					curLen = utf8.RuneCountInString(tail)
				}
			}
			if curLen > 0 {
				cur.WriteString("\n\n")
				curLen += 2
			}
			cur.WriteString(piece)
			curLen += n
		}
	}
	flush()
	return chunks
}

// paragraphs splits on blank lines and collapses whitespace inside each
// paragraph.
func paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitLong cuts a paragraph longer than size into word-aligned pieces.
// A single word longer than size is cut mid-word.
func splitLong(para string, size int) []string {
	if utf8.RuneCountInString(para) <= size {
		return []string{para}
	}
	var (
		out []string
		cur []string
		n   int
	)
	for _, word := range strings.Fields(para) {
		wl := utf8.RuneCountInString(word)
		for wl > size {
			if len(cur) > 0 {
				out = append(out, strings.Join(cur, " "))
				cur, n = nil, 0
			}
			r := []rune(word)
			out = append(out, string(r[:size]))
			word = string(r[size:])
			wl = len(r) - size
		}
		if n > 0 && n+1+wl > size {
			out = append(out, strings.Join(cur, " "))
			cur, n = nil, 0
		}
		if wl == 0 {
			continue
		}
		if n > 0 {
			n++
		}
		cur = append(cur, word)
		n += wl
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}

// tailWords returns about the last n characters of s starting at a word
// boundary.
func tailWords(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	tail := string(r[len(r)-n:])
	if i := strings.IndexAny(tail, " \n"); i >= 0 && i < len(tail)-1 {
		tail = tail[i+1:]
	}
	return strings.TrimSpace(tail)
}
