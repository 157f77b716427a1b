// Package shuffle hands out clips from per-key shuffled playlists so a
// character does not repeat the same line until every alternative was heard.
package shuffle

import (
	"math/rand/v2"
	"slices"
	"sync"
)

type queue struct {
	set   []string // sorted candidates the playlist was built from
	order []string
	next  int
}

// Picker keeps one shuffled playlist per (character, emotion) key.
// The zero value is not usable; call New.
type Picker struct {
	mu     sync.Mutex
	queues map[string]*queue
	intn   func(n int) int
}

// New returns a picker using the default random source.
func New() *Picker {
	return NewWithSource(rand.IntN)
}

// NewWithSource returns a picker that draws shuffle indexes from intn.
func NewWithSource(intn func(n int) int) *Picker {
	return &Picker{queues: make(map[string]*queue), intn: intn}
}

// Next returns the next clip for the key, or "" when candidates is empty.
// The playlist is shuffled on first use and again once exhausted, so the last
// clip of one pass may be the first of the next. A different candidate set
// under the same key starts a fresh pass.
func (p *Picker) Next(character, emotion string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	key := character + "_" + emotion
	p.mu.Lock()
	defer p.mu.Unlock()
	set := slices.Sorted(slices.Values(candidates))
	q, ok := p.queues[key]
	if !ok || !slices.Equal(q.set, set) {
		q = &queue{set: set, order: p.shuffle(candidates)}
		p.queues[key] = q
	}
	if q.next >= len(q.order) {
		q.order = p.shuffle(candidates)
		q.next = 0
	}
	clip := q.order[q.next]
	q.next++
	return clip
}

// Reset forgets every playlist.
func (p *Picker) Reset() {
	p.mu.Lock()
	p.queues = make(map[string]*queue)
	p.mu.Unlock()
}

// shuffle returns a Fisher-Yates shuffled copy of list.
func (p *Picker) shuffle(list []string) []string {
	out := append([]string(nil), list...)
	for i := len(out) - 1; i > 0; i-- {
		j := p.intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
