// Package stage holds what the screen shows during a cutscene. It receives
// presentation calls from the scene player and fades actors and text boxes
// in and out at a fixed rate, advanced by Update.
package stage

import (
	"sort"
	"sync"
	"time"

	"cutscene/assets"
	"cutscene/scene"
)

// DefaultFadeTime is how long a full fade takes.
const DefaultFadeTime = 350 * time.Millisecond

// fade is an opacity moving toward a target.
type fade struct {
	Alpha  float64
	target float64
}

func (f *fade) step(rate float64) {
	switch {
	case f.Alpha < f.target:
		f.Alpha = min(f.target, f.Alpha+rate)
	case f.Alpha > f.target:
		f.Alpha = max(f.target, f.Alpha-rate)
	}
}

// Visible reports whether anything of the element is on screen.
func (f fade) Visible() bool { return f.Alpha > 0 || f.target > 0 }

// Actor is a character on stage.
type Actor struct {
	fade
	Name  string
	Image assets.Clip
	// Placed actors stand in the back row at Slot; the rest are front actors.
	Placed bool
	Slot   scene.Slot
	Dim    bool
	seq    int
}

// Placeholder reports whether the actor has no image yet.
func (a Actor) Placeholder() bool { return a.Image.Ref == "" && a.Image.Data == nil }

// TextBox is the speech bubble or the caption box.
type TextBox struct {
	fade
	Line scene.Line
}

// Snapshot is a copy of the stage for drawing.
type Snapshot struct {
	Actors     []Actor
	Bubble     TextBox
	Caption    TextBox
	Fullscreen bool
}

// Stage implements scene.Presenter.
type Stage struct {
	FadeTime time.Duration

	mu         sync.Mutex
	actors     map[string]*Actor
	seq        int
	bubble     TextBox
	caption    TextBox
	fullscreen bool
}

var _ scene.Presenter = (*Stage)(nil)

// New returns an empty stage.
func New() *Stage {
	return &Stage{FadeTime: DefaultFadeTime, actors: make(map[string]*Actor)}
}

func (s *Stage) actor(name string) *Actor {
	a, ok := s.actors[name]
	if !ok {
		s.seq++
		a = &Actor{Name: name, seq: s.seq}
		s.actors[name] = a
	}
	return a
}

// Ensure creates a hidden placeholder for name if it does not exist.
func (s *Stage) Ensure(name string) {
	s.mu.Lock()
	s.actor(name)
	s.mu.Unlock()
}

// Show fades name in.
func (s *Stage) Show(name string) {
	s.mu.Lock()
	s.actor(name).target = 1
	s.mu.Unlock()
}

// Hide fades name out. It leaves the back row once fully transparent.
func (s *Stage) Hide(name string) {
	s.mu.Lock()
	s.actor(name).target = 0
	s.mu.Unlock()
}

// Place puts name in a back row slot.
func (s *Stage) Place(name string, slot scene.Slot) {
	s.mu.Lock()
	a := s.actor(name)
	a.Placed = true
	a.Slot = slot
	s.mu.Unlock()
}

// SetDim darkens or restores name.
func (s *Stage) SetDim(name string, dim bool) {
	s.mu.Lock()
	s.actor(name).Dim = dim
	s.mu.Unlock()
}

// SetImage swaps the image of name at once.
func (s *Stage) SetImage(name string, clip assets.Clip) {
	s.mu.Lock()
	s.actor(name).Image = clip
	s.mu.Unlock()
}

// ShowBubble shows line in the speech bubble and hides the caption.
func (s *Stage) ShowBubble(line scene.Line) {
	s.mu.Lock()
	s.bubble.Line = line
	s.bubble.target = 1
	s.caption.target = 0
	s.mu.Unlock()
}

// ShowCaption shows line in the caption box and hides the bubble.
func (s *Stage) ShowCaption(line scene.Line) {
	s.mu.Lock()
	s.caption.Line = line
	s.caption.target = 1
	s.bubble.target = 0
	s.mu.Unlock()
}

// ClearText fades both text boxes out.
func (s *Stage) ClearText() {
	s.mu.Lock()
	s.bubble.target = 0
	s.caption.target = 0
	s.mu.Unlock()
}

// SetFullscreen records whether the presentation is full screen.
func (s *Stage) SetFullscreen(on bool) {
	s.mu.Lock()
	s.fullscreen = on
	s.mu.Unlock()
}

// Fullscreen reports the last SetFullscreen value.
func (s *Stage) Fullscreen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullscreen
}

// Reset removes every actor and clears the text at once.
func (s *Stage) Reset() {
	s.mu.Lock()
	s.actors = make(map[string]*Actor)
	s.bubble = TextBox{}
	s.caption = TextBox{}
	s.mu.Unlock()
}

// Update advances every fade by dt. An actor is hidden exactly when its
// opacity reaches zero.
func (s *Stage) Update(dt time.Duration) {
	rate := 1.0
	if s.FadeTime > 0 {
		rate = dt.Seconds() / s.FadeTime.Seconds()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.actors {
		a.step(rate)
		if !a.Visible() {
			a.Placed = false
			a.Dim = false
		}
	}
	s.bubble.step(rate)
	s.caption.step(rate)
}

// Snapshot returns a copy of the stage. Back row actors come first, left to
// right, then front actors in creation order. Hidden actors are left out.
func (s *Stage) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{Bubble: s.bubble, Caption: s.caption, Fullscreen: s.fullscreen}
	for _, a := range s.actors {
		if a.Visible() {
			snap.Actors = append(snap.Actors, *a)
		}
	}
	sort.Slice(snap.Actors, func(i, j int) bool {
		a, b := snap.Actors[i], snap.Actors[j]
		if a.Placed != b.Placed {
			return a.Placed
		}
		if a.Placed && a.Slot.Center != b.Slot.Center {
			return a.Slot.Center < b.Slot.Center
		}
		return a.seq < b.seq
	})
	return snap
}

// Settled reports whether every fade has reached its target.
func (s *Stage) Settled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.actors {
		if a.Alpha != a.target {
			return false
		}
	}
	return s.bubble.Alpha == s.bubble.target && s.caption.Alpha == s.caption.target
}
