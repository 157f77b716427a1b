// Package assets knows every character that can appear in a script and
// resolves the clips and images they use, from the embedded built-in tables
// and from custom characters backed by a blob store.
package assets

import (
	"context"
	"strings"
)

// Zone is where a character stands on stage.
type Zone string

const (
	Back  Zone = "back"
	Front Zone = "front"
)

// Side is the bubble side of a front character.
type Side string

const (
	Right Side = "right"
	Left  Side = "left"
)

// Role is what a clip is used for.
type Role int

const (
	RoleVoice Role = iota
	RoleImage
	RoleIntro
	RoleBackground
	RoleSpawn
	RoleDespawn
	RoleSFX
)

var roleNames = [...]string{"voice", "image", "intro", "background", "spawn", "despawn", "sfx"}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return "unknown"
}

// Clip is one resolved asset. Built-in clips carry only Ref, a path relative
// to the asset root; custom clips carry their bytes in Data.
type Clip struct {
	Ref  string
	Data []byte
}

// Custom reports whether the clip came from the blob store.
func (c Clip) Custom() bool { return c.Data != nil }

// Query selects the clips of one role for one character.
type Query struct {
	Character string
	Role      Role
	Emotion   string
	Variant   string
	// Name is the effect name for RoleSFX.
	Name string
}

// Resolver maps a query to candidate clips. An empty result means the role
// has no asset and should be skipped.
type Resolver interface {
	Resolve(ctx context.Context, q Query) ([]Clip, error)
}

// SiteOwner owns blobs that belong to no character: custom sound effects
// and the default background override.
const SiteOwner = "site"

// DefaultBackground is the character name that resolves the site-wide
// default background.
const DefaultBackground = "default"

// Skin is an alternate look of a built-in character. Emotions overrides the
// image for single emotions.
type Skin struct {
	Image    string            `json:"image"`
	Emotions map[string]string `json:"emotions,omitempty"`
}

// Profile is the static description of a character.
type Profile struct {
	Name  string `json:"-"`
	Zone  Zone   `json:"zone"`
	Side  Side   `json:"side,omitempty"`
	Font  string `json:"font,omitempty"`
	Color string `json:"color,omitempty"`
	// VoiceDriven characters return to the SAY pose when a voice line ends.
	VoiceDriven bool `json:"voiceDriven,omitempty"`
	// IdleReset characters return to the SAY pose once the idle timer fires
	// and whenever someone else speaks.
	IdleReset bool `json:"idleReset,omitempty"`
	// SpriteDir holds one image per emotion, named after the emotion.
	SpriteDir  string                         `json:"spriteDir,omitempty"`
	Image      string                         `json:"image,omitempty"`
	Voices     map[string]map[string][]string `json:"voices,omitempty"`
	Intro      string                         `json:"intro,omitempty"`
	Background string                         `json:"background,omitempty"`
	Spawn      string                         `json:"spawn,omitempty"`
	Despawn    string                         `json:"despawn,omitempty"`
	Skins      map[string]Skin                `json:"skins,omitempty"`
}

// Custom is the stored metadata of a user-made character. Field names match
// the characters.json format.
type Custom struct {
	ImageReferences    map[string]string `json:"imageReferences"`
	VoiceReferences    map[string]string `json:"voiceReferences"`
	Font               string            `json:"font,omitempty"`
	TextColor          string            `json:"textColor,omitempty"`
	Position           string            `json:"position,omitempty"`
	HasIntroSound      bool              `json:"hasIntroSound,omitempty"`
	HasBackgroundMusic bool              `json:"hasBackgroundMusic,omitempty"`
	SpawnSound         string            `json:"spawnSound,omitempty"`
	DespawnSound       string            `json:"despawnSound,omitempty"`
}

// profile converts custom metadata into a profile. Position "abs" is a back
// character that resets to SAY when idle.
func (c Custom) profile(name string) Profile {
	p := Profile{
		Name:    name,
		Zone:    Back,
		Side:    Right,
		Font:    c.Font,
		Color:   c.TextColor,
		Spawn:   c.SpawnSound,
		Despawn: c.DespawnSound,
	}
	switch strings.ToLower(c.Position) {
	case "front":
		p.Zone = Front
	case "abs":
		p.IdleReset = true
	}
	return p
}

// NormalizeSFXKey turns a file name into a custom effect key: extension
// dropped, lower case, spaces as dashes, anything but [a-z0-9_-] removed.
func NormalizeSFXKey(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	name = strings.ToLower(strings.Join(strings.Fields(name), "-"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
