package assets

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cutscene/blobstore"
)

//go:embed data/builtin.json
var builtinJSON []byte

// Catalog merges the built-in character tables with custom characters.
// Custom metadata always wins over a built-in entry of the same name.
type Catalog struct {
	mu      sync.RWMutex
	builtin map[string]Profile
	custom  map[string]Custom
	sfxKeys map[string]string
	store   *blobstore.Store

	// DefaultBackground is the loop played when no character owns the music.
	DefaultBackground string
	// SFXDir is the directory of named sound effects.
	SFXDir string
}

// NewCatalog returns a catalog with the built-in characters. store may be nil,
// in which case no custom blobs resolve.
func NewCatalog(store *blobstore.Store) (*Catalog, error) {
	builtin, err := parseBuiltin(builtinJSON)
	if err != nil {
		return nil, err
	}
	return &Catalog{
		builtin:           builtin,
		custom:            make(map[string]Custom),
		sfxKeys:           make(map[string]string),
		store:             store,
		DefaultBackground: "background.mp3",
		SFXDir:            "sfx",
	}, nil
}

func parseBuiltin(data []byte) (map[string]Profile, error) {
	var m map[string]Profile
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("builtin characters: %w", err)
	}
	for name, p := range m {
		p.Name = name
		if p.Zone == "" {
			p.Zone = Back
		}
		if p.Zone == Front && p.Side == "" {
			p.Side = Right
		}
		m[name] = p
	}
	return m, nil
}

// Store returns the blob store backing custom characters.
func (c *Catalog) Store() *blobstore.Store { return c.store }

// Profile returns the profile of name. Unknown characters get a placeholder
// back-zone profile with no assets.
func (c *Catalog) Profile(name string) Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cu, ok := c.custom[name]; ok {
		return cu.profile(name)
	}
	if p, ok := c.builtin[name]; ok {
		return p
	}
	return Profile{Name: name, Zone: Back}
}

// Known reports whether name is a built-in or custom character.
func (c *Catalog) Known(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, b := c.builtin[name]
	_, cu := c.custom[name]
	return b || cu
}

// Zone returns the stage zone of name.
func (c *Catalog) Zone(name string) Zone { return c.Profile(name).Zone }

// Side returns the bubble side of name.
func (c *Catalog) Side(name string) Side {
	if s := c.Profile(name).Side; s != "" {
		return s
	}
	return Right
}

// Characters lists every known character, sorted.
func (c *Catalog) Characters() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.builtin)+len(c.custom))
	for n := range c.builtin {
		names = append(names, n)
	}
	for n := range c.custom {
		if _, dup := c.builtin[n]; !dup {
			names = append(names, n)
		}
	}
	c.mu.RUnlock()
	sort.Strings(names)
	return names
}

// AddCustom registers or replaces a custom character.
func (c *Catalog) AddCustom(name string, meta Custom) {
	c.mu.Lock()
	c.custom[name] = meta
	c.mu.Unlock()
}

// RemoveCustom forgets a custom character and drops its blobs.
func (c *Catalog) RemoveCustom(name string) bool {
	c.mu.Lock()
	_, ok := c.custom[name]
	delete(c.custom, name)
	c.mu.Unlock()
	if ok && c.store != nil {
		c.store.DeleteOwner(name)
	}
	return ok
}

// LoadCustom reads custom character metadata from a characters.json file.
// A missing file is not an error.
func (c *Catalog) LoadCustom(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	var m map[string]Custom
	if err := json.Unmarshal(data, &m); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	c.mu.Lock()
	for name, meta := range m {
		c.custom[name] = meta
	}
	c.mu.Unlock()
	return len(m), nil
}

// SaveCustom writes custom character metadata to path.
func (c *Catalog) SaveCustom(path string) error {
	c.mu.RLock()
	data, err := json.MarshalIndent(c.custom, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// SetSFXKeys replaces the custom effect key map. Keys absent from the map
// resolve to a blob of the same name.
func (c *Catalog) SetSFXKeys(keys map[string]string) {
	m := make(map[string]string, len(keys))
	for k, v := range keys {
		m[k] = v
	}
	c.mu.Lock()
	c.sfxKeys = m
	c.mu.Unlock()
}

// SFXKeys returns a copy of the custom effect key map.
func (c *Catalog) SFXKeys() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := make(map[string]string, len(c.sfxKeys))
	for k, v := range c.sfxKeys {
		m[k] = v
	}
	return m
}

// ImportSFX stores a custom effect read from file name and returns the key
// scripts use to play it as "custom:<key>".
func (c *Catalog) ImportSFX(name string, data []byte) (string, error) {
	if c.store == nil {
		return "", errors.New("no blob store")
	}
	key := NormalizeSFXKey(filepath.Base(name))
	if key == "" {
		return "", fmt.Errorf("sfx name %q has no usable characters", name)
	}
	c.store.Put(blobstore.Key{Kind: blobstore.KindSFX, Owner: SiteOwner, Name: key}, data)
	c.mu.Lock()
	c.sfxKeys[key] = key
	c.mu.Unlock()
	return key, nil
}

// Resolve implements Resolver.
func (c *Catalog) Resolve(ctx context.Context, q Query) ([]Clip, error) {
	c.mu.RLock()
	cu, isCustom := c.custom[q.Character]
	p, isBuiltin := c.builtin[q.Character]
	c.mu.RUnlock()

	switch q.Role {
	case RoleVoice:
		if isCustom {
			clips, err := c.customVoices(ctx, q.Character, cu, emotionOf(q))
			if err != nil || len(clips) > 0 {
				return clips, err
			}
		}
		if !isBuiltin {
			return nil, nil
		}
		return refs(p.voices(q.Variant, emotionOf(q))...), nil

	case RoleImage:
		if isCustom {
			return c.customImage(ctx, q.Character, cu, emotionOf(q))
		}
		if !isBuiltin {
			return nil, nil
		}
		return refs(p.image(q.Variant, emotionOf(q))), nil

	case RoleIntro:
		if isCustom && cu.HasIntroSound {
			return c.blob(ctx, blobstore.KindIntro, q.Character, "INTRO")
		}
		return refs(p.Intro), nil

	case RoleBackground:
		if q.Character == DefaultBackground {
			clips, err := c.blob(ctx, blobstore.KindBackground, SiteOwner, DefaultBackground)
			if err != nil || len(clips) > 0 {
				return clips, err
			}
			return refs(c.DefaultBackground), nil
		}
		if isCustom && cu.HasBackgroundMusic {
			return c.blob(ctx, blobstore.KindBackground, q.Character, "BACKGROUND")
		}
		return refs(p.Background), nil

	case RoleSpawn:
		if isCustom && cu.SpawnSound != "" {
			return c.customSound(ctx, blobstore.KindSpawn, q.Character, cu.SpawnSound)
		}
		return refs(p.Spawn), nil

	case RoleDespawn:
		if isCustom && cu.DespawnSound != "" {
			return c.customSound(ctx, blobstore.KindDespawn, q.Character, cu.DespawnSound)
		}
		return refs(p.Despawn), nil

	case RoleSFX:
		return c.sfx(ctx, q.Name)
	}
	return nil, fmt.Errorf("unknown role %v", q.Role)
}

func emotionOf(q Query) string {
	if q.Emotion == "" {
		return "SAY"
	}
	return strings.ToUpper(q.Emotion)
}

// voices returns the built-in lines for an emotion. An unknown variant falls
// back to the default set.
func (p Profile) voices(variant, emotion string) []string {
	if set, ok := p.Voices[variant]; ok && variant != "" {
		return set[emotion]
	}
	return p.Voices["default"][emotion]
}

func (p Profile) image(variant, emotion string) string {
	if variant != "" {
		if skin, ok := p.Skins[variant]; ok {
			if img, ok := skin.Emotions[emotion]; ok {
				return img
			}
			return skin.Image
		}
	}
	if p.SpriteDir != "" {
		if emotion == "SILENT" {
			emotion = "SAY"
		}
		return p.SpriteDir + "/" + strings.ToLower(emotion) + ".png"
	}
	return p.Image
}

func (c *Catalog) customVoices(ctx context.Context, owner string, cu Custom, emotion string) ([]Clip, error) {
	names := make([]string, 0, len(cu.VoiceReferences))
	for k := range cu.VoiceReferences {
		if strings.Contains(strings.ToUpper(k), emotion) {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	var clips []Clip
	for _, k := range names {
		got, err := c.blob(ctx, blobstore.KindVoice, owner, cu.VoiceReferences[k])
		if err != nil {
			return nil, err
		}
		clips = append(clips, got...)
	}
	return clips, nil
}

// customImage picks the image for an emotion: exact key, then any key
// containing the emotion, then SHOUT, then DEFAULT.
func (c *Catalog) customImage(ctx context.Context, owner string, cu Custom, emotion string) ([]Clip, error) {
	imgs := cu.ImageReferences
	var order []string
	if _, ok := imgs[emotion]; ok {
		order = append(order, emotion)
	}
	keys := make([]string, 0, len(imgs))
	for k := range imgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(k, emotion) {
			order = append(order, k)
			break
		}
	}
	order = append(order, "SHOUT", "DEFAULT")
	for _, k := range order {
		ref, ok := imgs[k]
		if !ok {
			continue
		}
		clips, err := c.blob(ctx, blobstore.KindImage, owner, ref)
		if err != nil || len(clips) > 0 {
			return clips, err
		}
	}
	return nil, nil
}

// customSound prefers an uploaded blob named ref and otherwise treats ref as
// a path under the asset root.
func (c *Catalog) customSound(ctx context.Context, kind blobstore.Kind, owner, ref string) ([]Clip, error) {
	clips, err := c.blob(ctx, kind, owner, ref)
	if err != nil || len(clips) > 0 {
		return clips, err
	}
	return refs(ref), nil
}

// Font returns the bytes of an uploaded font family, if any.
func (c *Catalog) Font(ctx context.Context, family string) ([]byte, bool) {
	if family == "" {
		return nil, false
	}
	clips, err := c.blob(ctx, blobstore.KindFont, SiteOwner, family)
	if err != nil || len(clips) == 0 {
		return nil, false
	}
	return clips[0].Data, true
}

// ImportFont stores a TrueType or OpenType font read from file name. The
// file name without extension becomes the family characters refer to.
func (c *Catalog) ImportFont(name string, data []byte) (string, error) {
	if c.store == nil {
		return "", errors.New("no blob store")
	}
	family := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if family == "" {
		return "", fmt.Errorf("font name %q is empty", name)
	}
	c.store.Put(blobstore.Key{Kind: blobstore.KindFont, Owner: SiteOwner, Name: family}, data)
	return family, nil
}

// sfx resolves "custom:<key>" through the blob store and anything else to
// the effect directory, .ogg first and .mp3 as fallback.
func (c *Catalog) sfx(ctx context.Context, name string) ([]Clip, error) {
	if name == "" {
		return nil, nil
	}
	if key, ok := strings.CutPrefix(name, "custom:"); ok {
		c.mu.RLock()
		ref := c.sfxKeys[key]
		c.mu.RUnlock()
		if ref == "" {
			ref = key
		}
		return c.blob(ctx, blobstore.KindSFX, SiteOwner, ref)
	}
	base := strings.TrimSuffix(strings.TrimSuffix(name, ".ogg"), ".mp3")
	dir := c.SFXDir
	return []Clip{{Ref: dir + "/" + base + ".ogg"}, {Ref: dir + "/" + base + ".mp3"}}, nil
}

func (c *Catalog) blob(ctx context.Context, kind blobstore.Kind, owner, name string) ([]Clip, error) {
	if c.store == nil {
		return nil, nil
	}
	key := blobstore.Key{Kind: kind, Owner: owner, Name: name}
	data, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	return []Clip{{Ref: key.String(), Data: data}}, nil
}

func refs(paths ...string) []Clip {
	var clips []Clip
	for _, p := range paths {
		if p != "" {
			clips = append(clips, Clip{Ref: p})
		}
	}
	return clips
}
