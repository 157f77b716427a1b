package scene

import (
	"context"
	"slices"
	"sync"
	"time"

	"cutscene/assets"
	"cutscene/censor"
)

// State is the playback state of a Player.
type State int

const (
	Idle State = iota
	Playing
	Blocked
	Finished
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Blocked:
		return "blocked"
	case Finished:
		return "finished"
	}
	return "idle"
}

// Line is a rendered line of dialogue.
type Line struct {
	Speaker string
	Text    string
	Side    assets.Side
	Font    string
	Color   string
}

// Presenter shows the stage. Every method must tolerate unknown characters.
type Presenter interface {
	Ensure(name string)
	Show(name string)
	Hide(name string)
	Place(name string, slot Slot)
	SetDim(name string, dim bool)
	SetImage(name string, clip assets.Clip)
	ShowBubble(line Line)
	ShowCaption(line Line)
	ClearText()
	SetFullscreen(on bool)
	Reset()
}

// Audio is the part of the sound manager the player drives.
type Audio interface {
	StartVoice(ctx context.Context, character, emotion, text, variant string)
	StopVoice()
	StartIntroAndBackground(ctx context.Context, character string)
	StopCharacter(ctx context.Context, character string)
	StartDefaultBackground(ctx context.Context)
	PlaySpawn(ctx context.Context, character string)
	PlayDespawn(ctx context.Context, character string)
	PlaySFX(ctx context.Context, name string, volume float64)
	StopAll()
	ResetShuffle()
}

// Catalog describes characters and resolves their images.
type Catalog interface {
	assets.Resolver
	Profile(name string) assets.Profile
}

// Summary describes a finished or exited session.
type Summary struct {
	Lines     int
	Completed bool
	Elapsed   time.Duration
}

type timer interface {
	Stop() bool
}

func realAfter(d time.Duration, f func()) timer { return time.AfterFunc(d, f) }

type session struct {
	ctx      context.Context
	cancel   context.CancelFunc
	index    int
	lines    int
	started  time.Time
	presence *Presence

	blocked  bool
	blockGen int
	block    timer

	// idle holds the pending idle timers by line; fired ones are removed.
	idle    map[int]timer
	idleSeq int

	// shown holds front characters made visible this session.
	shown  map[string]bool
	skins  map[string]string
	voices map[string]string
}

// Player walks a script one event at a time. Enter and leave events run on
// their own; a say event waits for the next Advance.
type Player struct {
	catalog Catalog
	audio   Audio
	view    Presenter
	filter  *censor.Filter

	// SkipBlock is how long external advances are ignored after an enter
	// or leave.
	SkipBlock time.Duration
	// IdleDelay is how long after a line leaveAfter and pose resets apply.
	IdleDelay time.Duration
	// OnFinish runs, outside the player lock, when a session ends.
	OnFinish func(Summary)

	after func(time.Duration, func()) timer
	now   func() time.Time

	mu     sync.Mutex
	script Script
	s      *session
	state  State
}

// NewPlayer returns an idle player.
func NewPlayer(catalog Catalog, audio Audio, view Presenter, filter *censor.Filter) *Player {
	if filter == nil {
		filter = censor.Default()
	}
	return &Player{
		catalog:   catalog,
		audio:     audio,
		view:      view,
		filter:    filter,
		SkipBlock: 2 * time.Second,
		IdleDelay: 2500 * time.Millisecond,
		after:     realAfter,
		now:       time.Now,
	}
}

// SetScript replaces the script. A running session keeps its index.
func (p *Player) SetScript(s Script) {
	p.mu.Lock()
	p.script = s
	p.mu.Unlock()
}

// Script returns the current script.
func (p *Player) Script() Script {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.script
}

// IsPlaying reports whether a session is running.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s != nil
}

// IsBlocked reports whether advances are currently ignored.
func (p *Player) IsBlocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s != nil && p.s.blocked
}

// Index returns the index of the next event to play.
func (p *Player) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.s == nil {
		return 0
	}
	return p.s.index
}

// State returns the playback state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.s != nil && p.s.blocked {
		return Blocked
	}
	return p.state
}

// Front returns the front characters on stage.
func (p *Player) Front() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.s == nil {
		return nil
	}
	return p.s.presence.Front()
}

// Back returns the back row on stage.
func (p *Player) Back() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.s == nil {
		return nil
	}
	return p.s.presence.Back()
}

// Dimmed reports whether a back character is darkened.
func (p *Player) Dimmed(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s != nil && p.s.presence.Dimmed(name)
}

// Upcoming returns the next say event that has not played yet.
func (p *Player) Upcoming() (Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.s == nil {
		return Event{}, false
	}
	return p.script.NextSay(p.s.index)
}

// Start begins a fresh session at the first event. A running session is
// discarded first.
func (p *Player) Start() {
	p.mu.Lock()
	if p.s != nil {
		p.teardownLocked()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		ctx:      ctx,
		cancel:   cancel,
		started:  p.now(),
		presence: NewPresence(func(name string) assets.Zone { return p.catalog.Profile(name).Zone }),
		shown:    make(map[string]bool),
		skins:    make(map[string]string),
		voices:   make(map[string]string),
		idle:     make(map[int]timer),
	}
	p.s = s
	p.state = Playing
	p.audio.StopAll()
	p.audio.ResetShuffle()
	p.view.Reset()
	p.view.SetFullscreen(true)
	p.audio.StartDefaultBackground(ctx)
	p.mu.Unlock()
}

// Advance plays the next events up to and including the next say. It is
// ignored when idle or blocked and reports whether it did anything.
func (p *Player) Advance() bool {
	p.mu.Lock()
	s := p.s
	if s == nil || s.blocked {
		p.mu.Unlock()
		return false
	}
	p.audio.StopVoice()
	sum, done := p.stepLocked(s)
	fn := p.OnFinish
	p.mu.Unlock()
	if done && fn != nil {
		fn(sum)
	}
	return true
}

// Exit ends the session from any state.
func (p *Player) Exit() {
	p.mu.Lock()
	if p.s == nil {
		p.mu.Unlock()
		return
	}
	sum := p.teardownLocked()
	fn := p.OnFinish
	p.mu.Unlock()
	if fn != nil {
		fn(sum)
	}
}

// stepLocked runs events until a say or the end of the script.
func (p *Player) stepLocked(s *session) (Summary, bool) {
	for {
		if s.index >= len(p.script) {
			p.state = Finished
			sum := p.teardownLocked()
			sum.Completed = true
			return sum, true
		}
		ev := p.script[s.index]
		s.index++
		switch ev.Type {
		case Enter:
			p.enterLocked(s, ev)
		case Leave:
			p.leaveLocked(s, ev)
		case Say:
			p.sayLocked(s, ev)
			return Summary{}, false
		default:
			Logf("scene: event %d has unknown type %q", s.index-1, ev.Type)
		}
	}
}

func (p *Player) enterLocked(s *session, ev Event) {
	name := ev.Speaker
	if name == "" {
		return
	}
	p.view.Ensure(name)
	if ev.SkinVariant != "" {
		s.skins[name] = ev.SkinVariant
	}
	if ev.VoiceVariant != "" {
		s.voices[name] = ev.VoiceVariant
	}
	p.setImageLocked(s, name, "SAY")
	if s.presence.Enter(name) == assets.Front {
		s.shown[name] = true
		p.view.Show(name)
	}
	p.layoutLocked(s)

	if s.index >= len(p.script) || p.script[s.index].Type != Enter {
		p.audio.StartIntroAndBackground(s.ctx, name)
	}
	p.audio.PlaySpawn(s.ctx, name)
	p.blockLocked(s)
}

func (p *Player) leaveLocked(s *session, ev Event) {
	name := ev.Speaker
	if name == "" {
		return
	}
	s.presence.Leave(name)
	delete(s.shown, name)
	p.view.Hide(name)
	p.layoutLocked(s)
	p.audio.PlayDespawn(s.ctx, name)
	p.audio.StopCharacter(s.ctx, name)
	p.blockLocked(s)
}

func (p *Player) sayLocked(s *session, ev Event) {
	name := ev.Speaker
	s.lines++
	s.presence.Undim()
	for _, b := range s.presence.Back() {
		p.view.SetDim(b, false)
	}
	p.view.ClearText()
	if name == "" {
		p.view.ShowCaption(Line{Text: p.filter.Censor(ev.Text)})
		return
	}
	p.view.Ensure(name)
	if ev.SkinVariant != "" {
		s.skins[name] = ev.SkinVariant
	}
	if ev.VoiceVariant != "" {
		s.voices[name] = ev.VoiceVariant
	}

	prof := p.catalog.Profile(name)
	line := Line{Speaker: name, Text: p.filter.Censor(ev.Text), Side: prof.Side, Font: prof.Font, Color: prof.Color}
	if prof.Zone == assets.Front {
		if line.Side == "" {
			line.Side = assets.Right
		}
		front := s.presence.Front()
		for other := range s.shown {
			if other != name && !slices.Contains(front, other) {
				delete(s.shown, other)
				p.view.Hide(other)
			}
		}
		s.shown[name] = true
		p.view.Show(name)
		p.view.ShowBubble(line)
	} else {
		if !s.presence.Has(name) {
			s.presence.Enter(name)
			p.layoutLocked(s)
		}
		p.view.ShowCaption(line)
		s.presence.Dim(name)
		for _, b := range s.presence.Back() {
			p.view.SetDim(b, s.presence.Dimmed(b))
		}
	}
	p.setImageLocked(s, name, ev.Emotion)

	for _, b := range s.presence.Back() {
		if b != name && p.catalog.Profile(b).IdleReset {
			p.setImageLocked(s, b, "SAY")
		}
	}

	p.audio.StartVoice(s.ctx, name, ev.Emotion, ev.Text, s.voices[name])
	if ev.SFX != "" {
		p.audio.PlaySFX(s.ctx, ev.SFX, ev.SFXVolume)
	}

	s.idleSeq++
	id := s.idleSeq
	s.idle[id] = p.after(p.IdleDelay, func() { p.idleFired(s, id, ev) })
}

// idleFired applies leaveAfter and the idle pose once a line has been shown
// for IdleDelay.
func (p *Player) idleFired(s *session, id int, ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.s != s {
		return
	}
	if _, ok := s.idle[id]; !ok {
		return
	}
	delete(s.idle, id)
	if ev.LeaveAfter && s.presence.Leave(ev.Speaker) {
		delete(s.shown, ev.Speaker)
		p.view.Hide(ev.Speaker)
		p.layoutLocked(s)
	}
	if p.catalog.Profile(ev.Speaker).IdleReset {
		p.setImageLocked(s, ev.Speaker, "SAY")
	}
}

// VoiceEnded returns a voice-driven character to its SAY pose. The sound
// manager calls it when a line finishes on its own.
func (p *Player) VoiceEnded(character string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.s
	if s == nil || !p.catalog.Profile(character).VoiceDriven {
		return
	}
	p.setImageLocked(s, character, "SAY")
}

func (p *Player) blockLocked(s *session) {
	s.blocked = true
	s.blockGen++
	gen := s.blockGen
	if s.block != nil {
		s.block.Stop()
	}
	s.block = p.after(p.SkipBlock, func() {
		p.mu.Lock()
		if p.s == s && s.blockGen == gen {
			s.blocked = false
		}
		p.mu.Unlock()
	})
}

func (p *Player) layoutLocked(s *session) {
	for _, pl := range s.presence.Layout() {
		p.view.Ensure(pl.Name)
		p.view.Place(pl.Name, pl.Slot)
		p.view.Show(pl.Name)
	}
}

func (p *Player) setImageLocked(s *session, name, emotion string) {
	clips, err := p.catalog.Resolve(s.ctx, assets.Query{
		Character: name,
		Role:      assets.RoleImage,
		Emotion:   emotion,
		Variant:   s.skins[name],
	})
	if err != nil {
		Logf("scene: image for %s: %v", name, err)
		return
	}
	if len(clips) > 0 {
		p.view.SetImage(name, clips[0])
	}
}

// teardownLocked ends the session and leaves the player idle.
func (p *Player) teardownLocked() Summary {
	s := p.s
	if s.block != nil {
		s.block.Stop()
	}
	for _, t := range s.idle {
		t.Stop()
	}
	s.cancel()
	s.presence.Clear()
	p.audio.StopAll()
	p.view.ClearText()
	p.view.Reset()
	p.view.SetFullscreen(false)
	p.s = nil
	p.state = Idle
	return Summary{Lines: s.lines, Elapsed: p.now().Sub(s.started)}
}
