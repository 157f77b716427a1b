package stage

import (
	"testing"
	"time"

	"cutscene/assets"
	"cutscene/scene"
)

func find(snap Snapshot, name string) (Actor, bool) {
	for _, a := range snap.Actors {
		if a.Name == name {
			return a, true
		}
	}
	return Actor{}, false
}

func TestEnsureIsHiddenPlaceholder(t *testing.T) {
	s := New()
	s.Ensure("dave")
	if _, ok := find(s.Snapshot(), "dave"); ok {
		t.Fatalf("ensured actor should not be visible")
	}
	s.Show("dave")
	a, ok := find(s.Snapshot(), "dave")
	if !ok || !a.Placeholder() {
		t.Fatalf("shown actor %+v %v", a, ok)
	}
	s.SetImage("dave", assets.Clip{Ref: "dave/say.png"})
	a, _ = find(s.Snapshot(), "dave")
	if a.Placeholder() || a.Image.Ref != "dave/say.png" {
		t.Fatalf("image not set: %+v", a)
	}
}

func TestFadeInAndOut(t *testing.T) {
	s := New()
	s.FadeTime = 400 * time.Millisecond
	s.Show("penny")
	s.Update(100 * time.Millisecond)
	a, _ := find(s.Snapshot(), "penny")
	if a.Alpha != 0.25 {
		t.Fatalf("alpha %v after a quarter fade", a.Alpha)
	}
	s.Update(time.Second)
	a, _ = find(s.Snapshot(), "penny")
	if a.Alpha != 1 || !s.Settled() {
		t.Fatalf("alpha %v after full fade", a.Alpha)
	}

	s.Hide("penny")
	s.Update(200 * time.Millisecond)
	a, ok := find(s.Snapshot(), "penny")
	if !ok || a.Alpha != 0.5 {
		t.Fatalf("half faded %+v %v", a, ok)
	}
	s.Update(200 * time.Millisecond)
	if _, ok := find(s.Snapshot(), "penny"); ok {
		t.Fatalf("actor should be hidden at zero opacity")
	}
}

func TestHiddenBackActorLeavesRow(t *testing.T) {
	s := New()
	s.Place("zomboss", scene.Slot{Center: 50, Width: 100})
	s.Show("zomboss")
	s.SetDim("zomboss", true)
	s.Update(time.Second)
	a, _ := find(s.Snapshot(), "zomboss")
	if !a.Placed || !a.Dim {
		t.Fatalf("placed %+v", a)
	}
	s.Hide("zomboss")
	s.Update(time.Second)
	s.Show("zomboss")
	a, _ = find(s.Snapshot(), "zomboss")
	if a.Placed || a.Dim {
		t.Fatalf("actor kept its slot after hiding: %+v", a)
	}
}

func TestSnapshotOrder(t *testing.T) {
	s := New()
	s.Show("dave")
	s.Place("nanny", scene.Slot{Center: 75, Width: 50})
	s.Show("nanny")
	s.Place("zomboss", scene.Slot{Center: 25, Width: 50})
	s.Show("zomboss")
	s.Show("penny")
	var names []string
	for _, a := range s.Snapshot().Actors {
		names = append(names, a.Name)
	}
	want := []string{"zomboss", "nanny", "dave", "penny"}
	if len(names) != len(want) {
		t.Fatalf("names %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names %v, want %v", names, want)
		}
	}
}

func TestTextBoxes(t *testing.T) {
	s := New()
	s.ShowBubble(scene.Line{Speaker: "dave", Text: "hello", Side: assets.Left})
	s.Update(time.Second)
	snap := s.Snapshot()
	if !snap.Bubble.Visible() || snap.Bubble.Line.Text != "hello" || snap.Caption.Visible() {
		t.Fatalf("bubble %+v caption %+v", snap.Bubble, snap.Caption)
	}
	s.ShowCaption(scene.Line{Speaker: "zomboss", Text: "grr"})
	s.Update(time.Second)
	snap = s.Snapshot()
	if snap.Bubble.Visible() || !snap.Caption.Visible() || snap.Caption.Line.Speaker != "zomboss" {
		t.Fatalf("caption not shown: %+v", snap)
	}
	s.ClearText()
	s.Update(time.Second)
	snap = s.Snapshot()
	if snap.Bubble.Visible() || snap.Caption.Visible() {
		t.Fatalf("text not cleared")
	}
}

func TestReset(t *testing.T) {
	s := New()
	s.Show("dave")
	s.ShowBubble(scene.Line{Text: "x"})
	s.SetFullscreen(true)
	s.Reset()
	snap := s.Snapshot()
	if len(snap.Actors) != 0 || snap.Bubble.Visible() {
		t.Fatalf("reset left %+v", snap)
	}
	if !s.Fullscreen() {
		t.Fatalf("reset should not touch fullscreen")
	}
}
