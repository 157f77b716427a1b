// Package scene plays dialogue scripts: it walks the events, keeps track of
// who is on stage and drives the audio manager and the presenter.
package scene

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
)

// Logf reports script and playback problems.
var Logf = log.Printf

// Event types.
const (
	Enter = "enter"
	Leave = "leave"
	Say   = "say"
)

// Event is one step of a script. Fields that do not apply to the type are
// left empty.
type Event struct {
	Type         string  `json:"type"`
	Speaker      string  `json:"speaker"`
	Emotion      string  `json:"emotion,omitempty"`
	Text         string  `json:"text,omitempty"`
	SFX          string  `json:"sfx,omitempty"`
	SFXVolume    float64 `json:"sfxVolume,omitempty"`
	VoiceVariant string  `json:"voiceVariant,omitempty"`
	SkinVariant  string  `json:"skinVariant,omitempty"`
	LeaveAfter   bool    `json:"leaveAfter,omitempty"`
}

// Script is an ordered list of events.
type Script []Event

// ErrNotArray is returned when a script document is not a JSON array.
var ErrNotArray = errors.New("script is not a JSON array")

// ParseScript decodes a JSON array of events. Elements that are not objects
// become events of no type, so they still take up their index.
func ParseScript(data []byte) (Script, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, ErrNotArray
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	s := make(Script, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &s[i]); err != nil {
			Logf("scene: event %d ignored: %v", i, err)
			s[i] = Event{}
		}
	}
	return s, nil
}

// LoadScript reads and parses a script file.
func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// NextSay returns the first say event at or after index from.
func (s Script) NextSay(from int) (Event, bool) {
	for i := max(from, 0); i < len(s); i++ {
		if s[i].Type == Say {
			return s[i], true
		}
	}
	return Event{}, false
}

// Speakers returns every distinct speaker in order of first appearance.
func (s Script) Speakers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range s {
		if e.Speaker != "" && !seen[e.Speaker] {
			seen[e.Speaker] = true
			out = append(out, e.Speaker)
		}
	}
	return out
}
