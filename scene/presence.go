package scene

import (
	"slices"

	"cutscene/assets"
)

// Slot is a horizontal position on the back row, in percent of the stage
// width.
type Slot struct {
	Center float64
	Width  float64
}

// Placement pairs a back character with its slot.
type Placement struct {
	Name string
	Slot Slot
}

// Presence tracks who is on stage. A character is in at most one zone.
type Presence struct {
	zone   func(name string) assets.Zone
	front  []string
	back   []string
	dimmed map[string]bool
}

// NewPresence returns an empty registry. zone gives the static zone of a
// character.
func NewPresence(zone func(name string) assets.Zone) *Presence {
	return &Presence{zone: zone, dimmed: make(map[string]bool)}
}

// Enter adds name to its zone and returns the zone. Entering twice is a
// no-op.
func (p *Presence) Enter(name string) assets.Zone {
	z := p.zone(name)
	if p.Has(name) {
		return z
	}
	if z == assets.Front {
		p.front = append(p.front, name)
	} else {
		p.back = append(p.back, name)
	}
	return z
}

// Leave removes name from whichever zone holds it.
func (p *Presence) Leave(name string) bool {
	delete(p.dimmed, name)
	if i := slices.Index(p.front, name); i >= 0 {
		p.front = slices.Delete(p.front, i, i+1)
		return true
	}
	if i := slices.Index(p.back, name); i >= 0 {
		p.back = slices.Delete(p.back, i, i+1)
		return true
	}
	return false
}

// Has reports whether name is on stage.
func (p *Presence) Has(name string) bool {
	return slices.Contains(p.front, name) || slices.Contains(p.back, name)
}

// Front returns the front characters in entry order.
func (p *Presence) Front() []string { return slices.Clone(p.front) }

// Back returns the back row, left to right.
func (p *Presence) Back() []string { return slices.Clone(p.back) }

// Layout gives every back character an equal share of the row.
func (p *Presence) Layout() []Placement {
	n := len(p.back)
	if n == 0 {
		return nil
	}
	w := 100 / float64(n)
	out := make([]Placement, n)
	for i, name := range p.back {
		out[i] = Placement{Name: name, Slot: Slot{Center: w*float64(i) + w/2, Width: w}}
	}
	return out
}

// Dim darkens every back character except speaking.
func (p *Presence) Dim(speaking string) {
	for _, name := range p.back {
		p.dimmed[name] = name != speaking
	}
}

// Undim clears every dim flag.
func (p *Presence) Undim() {
	clear(p.dimmed)
}

// Dimmed reports whether name is darkened.
func (p *Presence) Dimmed(name string) bool { return p.dimmed[name] }

// Clear empties both zones.
func (p *Presence) Clear() {
	p.front = nil
	p.back = nil
	clear(p.dimmed)
}
