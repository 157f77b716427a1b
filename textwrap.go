package main

import (
	"math"
	"strings"

	text "github.com/hajimehoshi/ebiten/v2/text/v2"
)

// measureWidth measures s with face. A *text.GoTextFace without a source is
// approximated at 0.6 of its size per rune so tests need no font.
func measureWidth(s string, face text.Face) float64 {
	if gf, ok := face.(*text.GoTextFace); ok && gf.Source == nil {
		return float64(len([]rune(s))) * (gf.Size * 0.6)
	}
	w, _ := text.Measure(s, face, 0)
	return w
}

// wrapText breaks s into lines no wider than maxWidth and returns the widest
// line's width. Words longer than maxWidth are split by rune.
func wrapText(s string, face text.Face, maxWidth float64) (int, []string) {
	var (
		lines   []string
		maxUsed float64
	)
	flush := func(b *strings.Builder, w *float64) {
		lines = append(lines, strings.TrimRight(b.String(), " "))
		maxUsed = math.Max(maxUsed, *w)
		b.Reset()
		*w = 0
	}
	for _, para := range strings.Split(s, "\n") {
		var b strings.Builder
		cur := 0.0
		for _, word := range strings.SplitAfter(para, " ") {
			if word == "" {
				continue
			}
			w := measureWidth(word, face)
			if cur+w <= maxWidth {
				b.WriteString(word)
				cur += w
				continue
			}
			if b.Len() > 0 {
				flush(&b, &cur)
			}
			if w <= maxWidth {
				b.WriteString(word)
				cur = w
				continue
			}
			for _, r := range word {
				rw := measureWidth(string(r), face)
				if cur+rw > maxWidth && b.Len() > 0 {
					flush(&b, &cur)
				}
				b.WriteRune(r)
				cur += rw
			}
		}
		flush(&b, &cur)
	}
	return int(math.Ceil(maxUsed)), lines
}
