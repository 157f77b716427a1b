package main

import (
	"strings"
	"testing"

	text "github.com/hajimehoshi/ebiten/v2/text/v2"
)

func TestWrapTextPreservesSpaces(t *testing.T) {
	face := &text.GoTextFace{Size: 12}
	_, lines := wrapText("foo  bar", face, 1000)
	if len(lines) != 1 {
		t.Fatalf("lines = %d want 1", len(lines))
	}
	if lines[0] != "foo  bar" {
		t.Fatalf("line = %q want %q", lines[0], "foo  bar")
	}
}

func TestWrapTextBreaksAtWords(t *testing.T) {
	// 6 pixels per rune.
	face := &text.GoTextFace{Size: 10}
	_, lines := wrapText("hello there world", face, 72)
	want := []string{"hello there", "world"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("lines = %q want %q", lines, want)
	}
}

func TestWrapTextSplitsLongWord(t *testing.T) {
	face := &text.GoTextFace{Size: 10}
	w, lines := wrapText("abcdefghij", face, 27)
	if len(lines) != 3 || lines[0] != "abcd" || lines[2] != "ij" {
		t.Fatalf("lines = %q", lines)
	}
	if w > 27 {
		t.Fatalf("width %d exceeds limit", w)
	}
}

func TestWrapTextKeepsNewlines(t *testing.T) {
	face := &text.GoTextFace{Size: 12}
	_, lines := wrapText("a\nb", face, 1000)
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
}
