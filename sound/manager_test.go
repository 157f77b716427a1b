package sound

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"cutscene/assets"
	"cutscene/censor"
	"cutscene/shuffle"
)

type fakeTrack struct {
	ref     string
	opts    Options
	done    chan error
	mu      sync.Mutex
	playing bool
	stopped bool
}

func (t *fakeTrack) Play() {
	t.mu.Lock()
	t.playing = true
	t.mu.Unlock()
}

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.playing = false
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTrack) Done() <-chan error { return t.done }

type fakeBackend struct {
	mu     sync.Mutex
	fail   map[string]bool
	opened []*fakeTrack
	// onOpen runs before each decode, outside b.mu.
	onOpen func(ref string)
}

func (b *fakeBackend) Open(_ context.Context, clip assets.Clip, opts Options) (Track, error) {
	if b.onOpen != nil {
		b.onOpen(clip.Ref)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail[clip.Ref] {
		return nil, errors.New("cannot decode")
	}
	t := &fakeTrack{ref: clip.Ref, opts: opts, done: make(chan error, 1)}
	b.opened = append(b.opened, t)
	return t, nil
}

func (b *fakeBackend) refs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, t := range b.opened {
		out = append(out, t.ref)
	}
	return out
}

// fakeResolver answers from a table keyed by "character/role" or "sfx/name".
type fakeResolver map[string][]string

func (r fakeResolver) Resolve(_ context.Context, q assets.Query) ([]assets.Clip, error) {
	key := q.Character + "/" + q.Role.String()
	switch q.Role {
	case assets.RoleVoice:
		key += "/" + q.Emotion
	case assets.RoleSFX:
		key = "sfx/" + q.Name
	}
	var clips []assets.Clip
	for _, ref := range r[key] {
		clips = append(clips, assets.Clip{Ref: ref})
	}
	return clips, nil
}

func newTestManager(res fakeResolver) (*Manager, *fakeBackend) {
	b := &fakeBackend{fail: map[string]bool{}}
	picker := shuffle.NewWithSource(func(n int) int { return n - 1 })
	m := NewManager(b, res, picker, censor.New([]string{"darn"}))
	return m, b
}

var testTable = fakeResolver{
	"default/background":   {"background.mp3"},
	"zomboss/intro":        {"zomboss/intro.ogg"},
	"zomboss/background":   {"zomboss/background.ogg"},
	"zomboss/spawn":        {"zomboss/spawn.ogg"},
	"penny/background":     {"weenie/BACKGROUND.ogg"},
	"plankton/intro":       {"plankton/intro.ogg"},
	"dave/voice/SAY":       {"dave/say1.ogg", "dave/say2.ogg"},
	"dave/voice/SHOUT":     {"dave/shout1.ogg"},
	"dave/spawn":           {"dave/SPAWN.ogg"},
	"sfx/boing":            {"sfx/boing.ogg", "sfx/boing.mp3"},
	"sfx/custom:splat":     {"site_sfx_splat"},
	"greedy/despawn":       nil,
	"greedy/spawn":         {"greedy/spawn.ogg"},
	"nanny/intro":          {"nanny/intro.ogg"},
	"nanny/background":     {"nanny/background.ogg"},
	"huntaria/background":  {"huntaria/background.ogg"},
	"missinfo/intro":       {"missinfo/intro.ogg"},
	"missinfo/background":  {"missinfo/background.ogg"},
	"spongebob/voice/SAY":  {"Spongebob/say1.ogg"},
	"spongebob/background": {"Spongebob/BACKGROUND.mp3"},
}

func activeOf(m *Manager, role Role) []Handle {
	var out []Handle
	for _, h := range m.Active() {
		if h.Role == role {
			out = append(out, h)
		}
	}
	return out
}

func finish(m *Manager, h Handle) { m.complete(completion{id: h.ID}) }

func TestIntroThenBackground(t *testing.T) {
	m, _ := newTestManager(testTable)
	ctx := context.Background()
	m.StartDefaultBackground(ctx)
	if m.MusicOwner() != DefaultOwner {
		t.Fatalf("owner %q", m.MusicOwner())
	}

	m.StartIntroAndBackground(ctx, "zomboss")
	if bg := activeOf(m, RoleBackground); len(bg) != 0 {
		t.Fatalf("default background still playing during intro: %v", bg)
	}
	intro := activeOf(m, RoleIntro)
	if len(intro) != 1 || intro[0].Ref != "zomboss/intro.ogg" {
		t.Fatalf("intro %v", intro)
	}

	finish(m, intro[0])
	bg := activeOf(m, RoleBackground)
	if len(bg) != 1 || bg[0].Ref != "zomboss/background.ogg" || bg[0].Owner != "zomboss" {
		t.Fatalf("background %v", bg)
	}
	if m.MusicOwner() != "zomboss" {
		t.Fatalf("owner %q", m.MusicOwner())
	}
	// a second completion of the same intro is stale
	finish(m, intro[0])
	if n := len(activeOf(m, RoleBackground)); n != 1 {
		t.Fatalf("%d backgrounds after stale completion", n)
	}
}

func TestIntroFailureStartsBackground(t *testing.T) {
	m, b := newTestManager(testTable)
	b.fail["zomboss/intro.ogg"] = true
	m.StartIntroAndBackground(context.Background(), "zomboss")
	bg := activeOf(m, RoleBackground)
	if len(bg) != 1 || bg[0].Owner != "zomboss" {
		t.Fatalf("background %v", bg)
	}
}

func TestBackgroundOnly(t *testing.T) {
	m, _ := newTestManager(testTable)
	m.StartIntroAndBackground(context.Background(), "penny")
	if m.MusicOwner() != "penny" || len(activeOf(m, RoleIntro)) != 0 {
		t.Fatalf("owner %q active %v", m.MusicOwner(), m.Active())
	}
}

func TestIntroWithoutBackground(t *testing.T) {
	m, _ := newTestManager(testTable)
	m.StartIntroAndBackground(context.Background(), "plankton")
	intro := activeOf(m, RoleIntro)
	if len(intro) != 1 {
		t.Fatalf("intro %v", intro)
	}
	finish(m, intro[0])
	if len(m.Active()) != 0 {
		t.Fatalf("nothing should play after intro, got %v", m.Active())
	}
}

func TestNoMusicLeavesOwner(t *testing.T) {
	m, _ := newTestManager(testTable)
	ctx := context.Background()
	m.StartIntroAndBackground(ctx, "penny")
	m.StartIntroAndBackground(ctx, "dave")
	if m.MusicOwner() != "penny" {
		t.Fatalf("character without music took ownership: %q", m.MusicOwner())
	}
}

func TestAtMostOneBackground(t *testing.T) {
	m, _ := newTestManager(testTable)
	ctx := context.Background()
	for _, c := range []string{"nanny", "huntaria", "missinfo", "penny"} {
		m.StartIntroAndBackground(ctx, c)
		for _, h := range activeOf(m, RoleIntro) {
			finish(m, h)
		}
		if n := len(activeOf(m, RoleBackground)); n > 1 {
			t.Fatalf("%d backgrounds after %s", n, c)
		}
		if n := len(activeOf(m, RoleIntro)) + len(activeOf(m, RoleBackground)); n > 1 {
			t.Fatalf("%d music tracks after %s", n, c)
		}
	}
	if m.MusicOwner() != "penny" {
		t.Fatalf("owner %q", m.MusicOwner())
	}
}

func TestStopOwnerResumesDefault(t *testing.T) {
	m, _ := newTestManager(testTable)
	ctx := context.Background()
	m.StartDefaultBackground(ctx)
	m.StartIntroAndBackground(ctx, "penny")
	m.StopCharacter(ctx, "penny")
	bg := activeOf(m, RoleBackground)
	if len(bg) != 1 || bg[0].Owner != DefaultOwner || m.MusicOwner() != DefaultOwner {
		t.Fatalf("default did not resume: %v owner %q", bg, m.MusicOwner())
	}
}

func TestStopDuringIntroResumesDefault(t *testing.T) {
	m, _ := newTestManager(testTable)
	ctx := context.Background()
	m.StartIntroAndBackground(ctx, "zomboss")
	intro := activeOf(m, RoleIntro)
	m.StopCharacter(ctx, "zomboss")
	finish(m, intro[0])
	bg := activeOf(m, RoleBackground)
	if len(bg) != 1 || bg[0].Owner != DefaultOwner {
		t.Fatalf("background %v", bg)
	}
}

func TestStopNonOwnerKeepsMusic(t *testing.T) {
	m, _ := newTestManager(testTable)
	ctx := context.Background()
	m.StartIntroAndBackground(ctx, "penny")
	m.StopCharacter(ctx, "zomboss")
	if m.MusicOwner() != "penny" || len(activeOf(m, RoleBackground)) != 1 {
		t.Fatalf("owner %q active %v", m.MusicOwner(), m.Active())
	}
}

func TestVoiceIsSingular(t *testing.T) {
	m, b := newTestManager(testTable)
	ctx := context.Background()
	m.StartVoice(ctx, "dave", "SAY", "hello", "")
	first := b.opened[0]
	m.StartVoice(ctx, "dave", "shout", "HELLO", "")
	voices := activeOf(m, RoleVoice)
	if len(voices) != 1 || voices[0].Ref != "dave/shout1.ogg" {
		t.Fatalf("voices %v", voices)
	}
	if !first.stopped {
		t.Fatalf("previous voice not stopped")
	}
	if b.opened[1].opts.Volume != 0.8 {
		t.Fatalf("voice volume %v", b.opened[1].opts.Volume)
	}
}

func TestSilentPlaysNothing(t *testing.T) {
	m, b := newTestManager(testTable)
	m.StartVoice(context.Background(), "dave", "SILENT", "...", "")
	if len(b.opened) != 0 {
		t.Fatalf("opened %v", b.refs())
	}
}

func TestCensoredVoice(t *testing.T) {
	m, b := newTestManager(testTable)
	ctx := context.Background()
	m.StartVoice(ctx, "dave", "SAY", "well darn it", "")
	if got := b.refs(); len(got) != 1 || got[0] != "SWEAR.ogg" {
		t.Fatalf("opened %v", got)
	}
	// the SAY queue was not touched by the censored line
	m.StartVoice(ctx, "dave", "SAY", "hi", "")
	if got := b.refs(); got[1] != "dave/say1.ogg" {
		t.Fatalf("opened %v", got)
	}
}

func TestVoiceEndedCallback(t *testing.T) {
	m, _ := newTestManager(testTable)
	var ended []string
	m.OnVoiceEnded(func(c string) { ended = append(ended, c) })
	ctx := context.Background()
	m.StartVoice(ctx, "spongebob", "SAY", "hi", "")
	v := activeOf(m, RoleVoice)[0]
	m.StartVoice(ctx, "dave", "SAY", "hi", "")
	// superseded voice completing must not report
	finish(m, v)
	if len(ended) != 0 {
		t.Fatalf("stale completion reported %v", ended)
	}
	finish(m, activeOf(m, RoleVoice)[0])
	if len(ended) != 1 || ended[0] != "dave" {
		t.Fatalf("ended %v", ended)
	}
}

func TestWatchDeliversCompletion(t *testing.T) {
	m, b := newTestManager(testTable)
	done := make(chan string, 1)
	m.OnVoiceEnded(func(c string) { done <- c })
	m.StartVoice(context.Background(), "dave", "SAY", "hi", "")
	b.opened[0].done <- nil
	if got := <-done; got != "dave" {
		t.Fatalf("ended %q", got)
	}
}

func TestSFXFallbackAndCustom(t *testing.T) {
	m, b := newTestManager(testTable)
	b.fail["sfx/boing.ogg"] = true
	ctx := context.Background()
	m.PlaySFX(ctx, "boing", 0)
	m.PlaySFX(ctx, "boing", 0.5)
	m.PlaySFX(ctx, "custom:splat", 0)
	m.PlaySFX(ctx, "nothing", 0)
	got := strings.Join(b.refs(), ",")
	if got != "sfx/boing.mp3,sfx/boing.mp3,site_sfx_splat" {
		t.Fatalf("opened %s", got)
	}
	if b.opened[0].opts.Volume != 1 || b.opened[1].opts.Volume != 0.5 {
		t.Fatalf("volumes %v %v", b.opened[0].opts.Volume, b.opened[1].opts.Volume)
	}
	if n := len(activeOf(m, RoleSFX)); n != 3 {
		t.Fatalf("%d effects active, effects are unlimited", n)
	}
}

func TestDespawnFallsBackToSpawn(t *testing.T) {
	m, b := newTestManager(testTable)
	m.PlayDespawn(context.Background(), "greedy")
	if got := b.refs(); len(got) != 1 || got[0] != "greedy/spawn.ogg" {
		t.Fatalf("opened %v", got)
	}
}

func TestStopAll(t *testing.T) {
	m, b := newTestManager(testTable)
	ctx := context.Background()
	m.StartDefaultBackground(ctx)
	m.StartVoice(ctx, "dave", "SAY", "hi", "")
	m.PlaySpawn(ctx, "dave")
	m.StopAll()
	if len(m.Active()) != 0 || m.MusicOwner() != "" {
		t.Fatalf("active %v owner %q", m.Active(), m.MusicOwner())
	}
	for _, tr := range b.opened {
		if !tr.stopped {
			t.Fatalf("%s not stopped", tr.ref)
		}
	}
}

func TestSwitches(t *testing.T) {
	m, b := newTestManager(testTable)
	ctx := context.Background()
	m.SetMusic(false)
	m.StartDefaultBackground(ctx)
	m.StartIntroAndBackground(ctx, "zomboss")
	if len(b.opened) != 0 {
		t.Fatalf("music disabled but opened %v", b.refs())
	}
	m.SetMusic(true)
	m.StartDefaultBackground(ctx)
	m.StartVoice(ctx, "dave", "SAY", "hi", "")
	m.SetEffects(false)
	if len(activeOf(m, RoleVoice)) != 0 || len(activeOf(m, RoleBackground)) != 1 {
		t.Fatalf("active %v", m.Active())
	}
	m.PlaySpawn(ctx, "dave")
	if len(activeOf(m, RoleSpawn)) != 0 {
		t.Fatalf("effects disabled but spawn played")
	}
}

func TestDecodeRunsWithoutManagerLock(t *testing.T) {
	m, b := newTestManager(testTable)
	var locked []string
	b.onOpen = func(ref string) {
		if !m.mu.TryLock() {
			locked = append(locked, ref)
			return
		}
		m.mu.Unlock()
	}
	ctx := context.Background()
	m.StartDefaultBackground(ctx)
	m.StartIntroAndBackground(ctx, "zomboss")
	finish(m, activeOf(m, RoleIntro)[0])
	m.StartVoice(ctx, "dave", "SAY", "hi", "")
	m.PlaySFX(ctx, "boing", 0)
	m.StopCharacter(ctx, "zomboss")
	if len(locked) != 0 {
		t.Fatalf("decoded with the manager locked: %v", locked)
	}
	if len(b.opened) != 6 {
		t.Fatalf("opened %v", b.refs())
	}
}

func TestBackgroundDroppedWhenMusicStopsDuringDecode(t *testing.T) {
	m, b := newTestManager(testTable)
	ctx := context.Background()
	m.StartIntroAndBackground(ctx, "zomboss")
	intro := activeOf(m, RoleIntro)[0]
	b.onOpen = func(ref string) {
		if ref == "zomboss/background.ogg" {
			m.SetMusic(false)
		}
	}
	finish(m, intro)
	if len(m.Active()) != 0 || m.MusicOwner() != "" {
		t.Fatalf("active %v owner %q", m.Active(), m.MusicOwner())
	}
	last := b.opened[len(b.opened)-1]
	if last.ref != "zomboss/background.ogg" || !last.stopped || last.playing {
		t.Fatalf("late background not discarded: %+v", last)
	}
}
