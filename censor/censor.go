package censor

import (
	"bufio"
	"bytes"
	_ "embed"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

//go:embed data/banned_words.txt
var defaultWords []byte

// symbols is the alphabet used for censor bars.
var symbols = []rune{'@', '#', '!', '?', '%', '&'}

// intn picks a random index. Tests may override it for reproducible bars.
var intn = rand.IntN

// Filter replaces banned terms in text with same-length censor bars.
// A Filter is safe for concurrent use.
type Filter struct {
	mu       sync.RWMutex
	terms    []string
	patterns []*regexp.Regexp
}

var (
	defaultOnce   sync.Once
	defaultFilter *Filter
)

// Default returns a filter built from the embedded word list.
func Default() *Filter {
	defaultOnce.Do(func() {
		defaultFilter = New(ParseWords(defaultWords))
	})
	return defaultFilter
}

// ParseWords reads one term per line, skipping blanks and # comments.
func ParseWords(b []byte) []string {
	var words []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return words
}

// New builds a filter for the given terms.
func New(words []string) *Filter {
	f := &Filter{}
	f.Add(words...)
	return f
}

// Add extends the filter with more terms. Terms are compared case-folded
// for duplicates but matched in their original spelling, so a fold such as
// ß to ss never changes what is censored.
func (f *Filter) Add(words ...string) {
	fold := cases.Fold()
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]struct{}, len(f.terms)+len(words))
	for _, t := range f.terms {
		seen[fold.String(t)] = struct{}{}
	}
	for _, w := range words {
		term := strings.TrimSpace(w)
		if term == "" {
			continue
		}
		key := fold.String(term)
		if _, ok := seen[key]; ok {
			continue
		}
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(term))
		if err != nil {
			continue
		}
		seen[key] = struct{}{}
		f.terms = append(f.terms, term)
		f.patterns = append(f.patterns, re)
	}
}

// Terms returns the term list as added, trimmed.
func (f *Filter) Terms() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.terms...)
}

// Censor returns text with every banned term replaced by a censor bar of the
// same rune length. Bars are regenerated on every call.
func (f *Filter) Censor(text string) string {
	if f == nil || text == "" {
		return text
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := text
	for _, re := range f.patterns {
		found := wordMatches(re, out)
		if len(found) == 0 {
			continue
		}
		var sb strings.Builder
		last := 0
		for _, m := range found {
			sb.WriteString(out[last:m[0]])
			sb.WriteString(Bar(utf8.RuneCountInString(out[m[0]:m[1]])))
			last = m[1]
		}
		sb.WriteString(out[last:])
		out = sb.String()
	}
	return out
}

// WasCensored reports whether Censor would alter text.
func (f *Filter) WasCensored(text string) bool {
	if f == nil || text == "" {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, re := range f.patterns {
		if len(wordMatches(re, text)) > 0 {
			return true
		}
	}
	return false
}

// wordMatches returns the non-overlapping matches of re in text that start
// and end on a word boundary. Letters and digits of any script count as word
// runes; regexp's \b only knows ASCII.
func wordMatches(re *regexp.Regexp, text string) [][2]int {
	var out [][2]int
	pos := 0
	for pos <= len(text) {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end > start && boundaryBefore(text, start) && boundaryAfter(text, end) {
			out = append(out, [2]int{start, end})
			pos = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		if size == 0 {
			break
		}
		pos = start + size
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(text[:i])
	first, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(prev) || !isWordRune(first)
}

func boundaryAfter(text string, i int) bool {
	if i == len(text) {
		return true
	}
	last, _ := utf8.DecodeLastRuneInString(text[:i])
	next, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(last) || !isWordRune(next)
}

// Bar returns n random symbols with no two adjacent symbols equal.
func Bar(n int) string {
	if n <= 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(n)
	prev := rune(0)
	for i := 0; i < n; i++ {
		ch := symbols[intn(len(symbols))]
		for ch == prev {
			ch = symbols[intn(len(symbols))]
		}
		sb.WriteRune(ch)
		prev = ch
	}
	return sb.String()
}
