package scene

import (
	"context"
	"testing"

	"cutscene/assets"
	"cutscene/censor"
	"cutscene/shuffle"
	"cutscene/sound"
)

type silentTrack struct{ done chan error }

func (t *silentTrack) Play()              {}
func (t *silentTrack) Stop()              {}
func (t *silentTrack) Done() <-chan error { return t.done }

type silentBackend struct{ opened []string }

func (b *silentBackend) Open(_ context.Context, clip assets.Clip, _ sound.Options) (sound.Track, error) {
	b.opened = append(b.opened, clip.Ref)
	return &silentTrack{done: make(chan error, 1)}, nil
}

func countRole(m *sound.Manager, role sound.Role) int {
	n := 0
	for _, h := range m.Active() {
		if h.Role == role {
			n++
		}
	}
	return n
}

func newIntegration(t *testing.T, script Script) (*Player, *sound.Manager, *fakeClock) {
	t.Helper()
	cat, err := assets.NewCatalog(nil)
	if err != nil {
		t.Fatal(err)
	}
	filter := censor.New([]string{"shit"})
	m := sound.NewManager(&silentBackend{}, cat, shuffle.New(), filter)
	clock := &fakeClock{}
	p := NewPlayer(cat, m, &fakeView{}, filter)
	p.after = clock.after
	m.OnVoiceEnded(p.VoiceEnded)
	p.SetScript(script)
	return p, m, clock
}

func TestLeaveOfOwnerResumesDefault(t *testing.T) {
	p, m, clock := newIntegration(t, Script{
		enter("penny"),
		say("penny", "SAY", "hi"),
		leave("penny"),
		say("zomboss", "SAY", "still here"),
	})
	p.Start()
	if m.MusicOwner() != sound.DefaultOwner {
		t.Fatalf("owner after start %q", m.MusicOwner())
	}
	p.Advance()
	if m.MusicOwner() != "penny" {
		t.Fatalf("owner after enter %q", m.MusicOwner())
	}
	clock.fire(p.SkipBlock)
	p.Advance()
	if m.MusicOwner() != sound.DefaultOwner {
		t.Fatalf("owner after leave %q", m.MusicOwner())
	}
	if n := countRole(m, sound.RoleBackground); n != 1 {
		t.Fatalf("%d backgrounds", n)
	}
}

func TestFinishedLeavesNoAudio(t *testing.T) {
	p, m, clock := newIntegration(t, Script{
		enter("zomboss"),
		enter("penny"),
		say("zomboss", "SHOUT", "oh shit"),
		say("penny", "SAY", "hi"),
		leave("zomboss"),
	})
	p.Start()
	for p.IsPlaying() {
		clock.fire(p.SkipBlock)
		p.Advance()
		if n := countRole(m, sound.RoleBackground); n > 1 {
			t.Fatalf("%d backgrounds playing", n)
		}
	}
	if len(m.Active()) != 0 {
		t.Fatalf("handles left after finish: %v", m.Active())
	}
}

func TestCensoredLineUsesSwearClip(t *testing.T) {
	cat, _ := assets.NewCatalog(nil)
	b := &silentBackend{}
	filter := censor.New([]string{"shit"})
	m := sound.NewManager(b, cat, nil, filter)
	p := NewPlayer(cat, m, &fakeView{}, filter)
	p.after = (&fakeClock{}).after
	p.SetScript(Script{say("zomboss", "SAY", "shit happens")})
	p.Start()
	p.Advance()
	voices := 0
	for _, h := range m.Active() {
		if h.Role == sound.RoleVoice {
			voices++
			if h.Ref != "SWEAR.ogg" {
				t.Fatalf("voice %s", h.Ref)
			}
		}
	}
	if voices != 1 {
		t.Fatalf("%d voices", voices)
	}
}
