// Package sound owns every audio track of a cutscene: intro stingers,
// looping backgrounds, voice lines and one-shot effects.
package sound

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"

	"cutscene/assets"
	"cutscene/censor"
	"cutscene/shuffle"
)

// Logf reports playback problems. Nothing here is fatal.
var Logf = log.Printf

// Role is what a track is used for.
type Role string

const (
	RoleIntro      Role = "intro"
	RoleBackground Role = "background"
	RoleVoice      Role = "voice"
	RoleSpawn      Role = "spawn"
	RoleDespawn    Role = "despawn"
	RoleSFX        Role = "sfx"
)

func (r Role) music() bool { return r == RoleIntro || r == RoleBackground }

// DefaultOwner is the music owner while the default background plays.
const DefaultOwner = "default"

// Options configure a track when it is opened.
type Options struct {
	Loop   bool
	Volume float64
}

// Track is one opened clip. Done delivers once when playback ends on its own;
// a stopped track never delivers.
type Track interface {
	Play()
	Stop()
	Done() <-chan error
}

// Backend opens clips for playback.
type Backend interface {
	Open(ctx context.Context, clip assets.Clip, opts Options) (Track, error)
}

// Handle describes a live track.
type Handle struct {
	ID    uint64
	Role  Role
	Owner string
	Ref   string
}

type handle struct {
	Handle
	track Track
	stop  chan struct{}
	// next is the background that follows an intro.
	next []assets.Clip
}

type completion struct {
	id  uint64
	err error
}

// Manager enforces the ownership rules: one voice at a time, one music
// sequence at a time, unlimited one-shots.
type Manager struct {
	backend  Backend
	resolver assets.Resolver
	picker   *shuffle.Picker
	filter   *censor.Filter

	// CensoredClip replaces the voice line of any text the filter changes.
	CensoredClip     string
	VoiceVolume      float64
	BackgroundVolume float64
	IntroVolume      float64
	EffectsVolume    float64

	mu         sync.Mutex
	nextID     uint64
	handles    map[uint64]*handle
	voice      *handle
	intro      *handle
	background *handle
	owner      string
	sequence   string
	music      bool
	effects    bool
	// musicGen changes whenever the music is stopped wholesale; a background
	// decoded under an older generation is discarded.
	musicGen   uint64
	voiceEnded func(character string)
}

// NewManager returns a manager with music and effects enabled.
func NewManager(backend Backend, resolver assets.Resolver, picker *shuffle.Picker, filter *censor.Filter) *Manager {
	if picker == nil {
		picker = shuffle.New()
	}
	if filter == nil {
		filter = censor.Default()
	}
	return &Manager{
		backend:          backend,
		resolver:         resolver,
		picker:           picker,
		filter:           filter,
		CensoredClip:     "SWEAR.ogg",
		VoiceVolume:      0.8,
		BackgroundVolume: 0.5,
		IntroVolume:      1,
		EffectsVolume:    1,
		handles:          make(map[uint64]*handle),
		music:            true,
		effects:          true,
	}
}

// ResetShuffle forgets every voice playlist.
func (m *Manager) ResetShuffle() { m.picker.Reset() }

// OnVoiceEnded registers fn to be called, outside the manager lock, when a
// voice line finishes on its own.
func (m *Manager) OnVoiceEnded(fn func(character string)) {
	m.mu.Lock()
	m.voiceEnded = fn
	m.mu.Unlock()
}

// SetMusic enables or disables intros and backgrounds. Disabling stops them.
func (m *Manager) SetMusic(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.music = on
	if !on {
		m.stopMusicLocked()
		m.owner, m.sequence = "", ""
	}
}

// SetEffects enables or disables voices, spawn sounds and effects.
// Disabling stops them.
func (m *Manager) SetEffects(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.effects = on
	if !on {
		for _, h := range m.handles {
			if !h.Role.music() {
				m.stopLocked(h)
			}
		}
	}
}

// MusicOwner returns the character whose background plays, DefaultOwner, or
// "" when no music plays.
func (m *Manager) MusicOwner() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// Active returns the live tracks ordered by creation.
func (m *Manager) Active() []Handle {
	m.mu.Lock()
	out := make([]Handle, 0, len(m.handles))
	for _, h := range m.handles {
		out = append(out, h.Handle)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StartVoice plays one line for character. SILENT plays nothing. Text the
// filter would change plays the censored clip instead of a voice line.
func (m *Manager) StartVoice(ctx context.Context, character, emotion, text, variant string) {
	emotion = strings.ToUpper(emotion)
	if emotion == "" {
		emotion = "SAY"
	}
	if emotion == "SILENT" {
		return
	}
	m.mu.Lock()
	on := m.effects
	m.mu.Unlock()
	if !on {
		return
	}

	var clips []assets.Clip
	key := emotion
	if m.filter.WasCensored(text) {
		if m.CensoredClip == "" {
			return
		}
		clips = []assets.Clip{{Ref: m.CensoredClip}}
		key = "censored"
	} else {
		var err error
		clips, err = m.resolver.Resolve(ctx, assets.Query{Character: character, Role: assets.RoleVoice, Emotion: emotion, Variant: variant})
		if err != nil {
			Logf("sound: resolve voice %s %s: %v", character, emotion, err)
			return
		}
		if variant != "" {
			key += "/" + variant
		}
	}
	clip, ok := m.pick(character, key, clips)
	if !ok {
		return
	}

	m.StopVoice()
	tr, ref := m.open(ctx, RoleVoice, []assets.Clip{clip}, Options{Volume: m.VoiceVolume})
	if tr == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.effects {
		tr.Stop()
		return
	}
	if m.voice != nil {
		m.stopLocked(m.voice)
	}
	m.voice = m.startLocked(RoleVoice, character, ref, tr)
}

func (m *Manager) pick(character, key string, clips []assets.Clip) (assets.Clip, bool) {
	if len(clips) == 0 {
		return assets.Clip{}, false
	}
	refs := make([]string, len(clips))
	byRef := make(map[string]assets.Clip, len(clips))
	for i, c := range clips {
		refs[i] = c.Ref
		byRef[c.Ref] = c
	}
	ref := m.picker.Next(character, key, refs)
	c, ok := byRef[ref]
	return c, ok
}

// StopVoice stops the current voice line, if any.
func (m *Manager) StopVoice() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.voice != nil {
		m.stopLocked(m.voice)
	}
}

// StartIntroAndBackground makes character the music owner: every other
// intro and background stops, then the intro plays and the background loop
// follows it. A character with neither leaves the music alone.
func (m *Manager) StartIntroAndBackground(ctx context.Context, character string) {
	m.mu.Lock()
	on := m.music
	m.mu.Unlock()
	if !on {
		return
	}
	intro := m.resolve(ctx, assets.Query{Character: character, Role: assets.RoleIntro})
	bg := m.resolve(ctx, assets.Query{Character: character, Role: assets.RoleBackground})
	if len(intro) == 0 && len(bg) == 0 {
		return
	}

	role := RoleIntro
	tr, ref := m.open(ctx, RoleIntro, intro, Options{Volume: m.IntroVolume})
	if tr == nil {
		role = RoleBackground
		tr, ref = m.open(ctx, RoleBackground, bg, Options{Loop: true, Volume: m.BackgroundVolume})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.music {
		if tr != nil {
			tr.Stop()
		}
		return
	}
	m.stopMusicLocked()
	m.owner = ""
	m.sequence = character
	if tr == nil {
		return
	}
	h := m.startLocked(role, character, ref, tr)
	if role == RoleIntro {
		h.next = bg
		m.intro = h
		return
	}
	m.background = h
	m.owner = character
}

// StopCharacter stops the intro and background of character. If character
// owned the music, the default background resumes.
func (m *Manager) StopCharacter(ctx context.Context, character string) {
	m.mu.Lock()
	if m.intro != nil && m.intro.Owner == character {
		m.stopLocked(m.intro)
	}
	if m.background != nil && m.background.Owner == character {
		m.stopLocked(m.background)
	}
	if m.owner != character && m.sequence != character {
		m.mu.Unlock()
		return
	}
	m.owner, m.sequence = "", ""
	gen, ok := m.clearMusicLocked()
	m.mu.Unlock()
	if ok {
		m.startBackground(ctx, gen, DefaultOwner, m.resolve(ctx, assets.Query{Character: assets.DefaultBackground, Role: assets.RoleBackground}))
	}
}

// StartDefaultBackground stops all character music and loops the default
// background.
func (m *Manager) StartDefaultBackground(ctx context.Context) {
	m.mu.Lock()
	gen, ok := m.clearMusicLocked()
	m.mu.Unlock()
	if ok {
		m.startBackground(ctx, gen, DefaultOwner, m.resolve(ctx, assets.Query{Character: assets.DefaultBackground, Role: assets.RoleBackground}))
	}
}

// clearMusicLocked stops all music ahead of a new background and returns the
// generation that background belongs to. ok is false when music is off.
func (m *Manager) clearMusicLocked() (gen uint64, ok bool) {
	if !m.music {
		return 0, false
	}
	m.stopMusicLocked()
	m.owner, m.sequence = "", ""
	return m.musicGen, true
}

// startBackground decodes and loops a background for owner. The result is
// dropped if the music was stopped or replaced while decoding.
func (m *Manager) startBackground(ctx context.Context, gen uint64, owner string, clips []assets.Clip) {
	if len(clips) == 0 {
		return
	}
	tr, ref := m.open(ctx, RoleBackground, clips, Options{Loop: true, Volume: m.BackgroundVolume})
	if tr == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.music || gen != m.musicGen {
		tr.Stop()
		return
	}
	if m.background != nil {
		m.stopLocked(m.background)
	}
	m.background = m.startLocked(RoleBackground, owner, ref, tr)
	m.owner = owner
}

// PlaySpawn plays the spawn sound of character.
func (m *Manager) PlaySpawn(ctx context.Context, character string) {
	m.oneShot(ctx, RoleSpawn, character, m.resolve(ctx, assets.Query{Character: character, Role: assets.RoleSpawn}), 0)
}

// PlayDespawn plays the despawn sound of character, or its spawn sound when
// it has none.
func (m *Manager) PlayDespawn(ctx context.Context, character string) {
	clips := m.resolve(ctx, assets.Query{Character: character, Role: assets.RoleDespawn})
	if len(clips) == 0 {
		clips = m.resolve(ctx, assets.Query{Character: character, Role: assets.RoleSpawn})
	}
	m.oneShot(ctx, RoleDespawn, character, clips, 0)
}

// PlaySFX plays a named effect. A volume of 0 means full volume.
func (m *Manager) PlaySFX(ctx context.Context, name string, volume float64) {
	if name == "" {
		return
	}
	m.oneShot(ctx, RoleSFX, name, m.resolve(ctx, assets.Query{Role: assets.RoleSFX, Name: name}), volume)
}

func (m *Manager) oneShot(ctx context.Context, role Role, owner string, clips []assets.Clip, volume float64) {
	if len(clips) == 0 {
		return
	}
	if volume <= 0 {
		volume = 1
	}
	m.mu.Lock()
	on := m.effects
	m.mu.Unlock()
	if !on {
		return
	}
	tr, ref := m.open(ctx, role, clips, Options{Volume: volume * m.EffectsVolume})
	if tr == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.effects {
		tr.Stop()
		return
	}
	m.startLocked(role, owner, ref, tr)
}

// StopAll stops every track and forgets the music owner.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.handles {
		m.stopLocked(h)
	}
	m.musicGen++
	m.owner, m.sequence = "", ""
}

func (m *Manager) resolve(ctx context.Context, q assets.Query) []assets.Clip {
	clips, err := m.resolver.Resolve(ctx, q)
	if err != nil {
		Logf("sound: resolve %s for %q: %v", q.Role, q.Character+q.Name, err)
		return nil
	}
	return clips
}

// open decodes the first candidate that loads. It must be called without
// m.mu held; decoding a cache miss can take a while.
func (m *Manager) open(ctx context.Context, role Role, clips []assets.Clip, opts Options) (Track, string) {
	for _, c := range clips {
		tr, err := m.backend.Open(ctx, c, opts)
		if err != nil {
			Logf("sound: open %s %s: %v", role, c.Ref, err)
			continue
		}
		return tr, c.Ref
	}
	return nil, ""
}

// startLocked registers an opened track and starts it.
func (m *Manager) startLocked(role Role, owner, ref string, tr Track) *handle {
	m.nextID++
	h := &handle{
		Handle: Handle{ID: m.nextID, Role: role, Owner: owner, Ref: ref},
		track:  tr,
		stop:   make(chan struct{}),
	}
	m.handles[h.ID] = h
	tr.Play()
	go m.watch(h)
	return h
}

func (m *Manager) watch(h *handle) {
	select {
	case err := <-h.track.Done():
		m.complete(completion{id: h.ID, err: err})
	case <-h.stop:
	}
}

// complete handles a track that ended on its own. Completions of tracks that
// were already stopped or replaced are ignored.
func (m *Manager) complete(c completion) {
	m.mu.Lock()
	h, ok := m.handles[c.id]
	if !ok {
		m.mu.Unlock()
		return
	}
	m.forgetLocked(h)
	if c.err != nil {
		Logf("sound: %s %s: %v", h.Role, h.Ref, c.err)
	}
	var ended string
	var notify func(string)
	gen := m.musicGen
	if h.Role == RoleVoice && c.err == nil {
		ended, notify = h.Owner, m.voiceEnded
	}
	m.mu.Unlock()
	if h.Role == RoleIntro {
		m.startBackground(context.Background(), gen, h.Owner, h.next)
	}
	if ended != "" && notify != nil {
		notify(ended)
	}
}

func (m *Manager) stopMusicLocked() {
	for _, h := range m.handles {
		if h.Role.music() {
			m.stopLocked(h)
		}
	}
	m.musicGen++
}

func (m *Manager) stopLocked(h *handle) {
	if _, ok := m.handles[h.ID]; !ok {
		return
	}
	m.forgetLocked(h)
	close(h.stop)
	h.track.Stop()
}

func (m *Manager) forgetLocked(h *handle) {
	delete(m.handles, h.ID)
	switch h {
	case m.voice:
		m.voice = nil
	case m.intro:
		m.intro = nil
	case m.background:
		m.background = nil
	}
}
