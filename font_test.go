package main

import (
	"testing"

	text "github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/gofont/gomono"
)

func TestFaceForUploadedFamily(t *testing.T) {
	orig := fontData
	defer func() {
		fontData = orig
		clearFontCache()
	}()
	clearFontCache()
	lookups := 0
	fontData = func(family string) ([]byte, bool) {
		lookups++
		switch family {
		case "Comic":
			return gomono.TTF, true
		case "Broken":
			return []byte("not a font"), true
		}
		return nil, false
	}

	face := faceFor("Comic", 12).(*text.GoTextFace)
	if face.Source == fontSource(styleRegular) {
		t.Fatalf("uploaded family fell back to the bundled font")
	}
	if again := faceFor("Comic", 20).(*text.GoTextFace); again.Source != face.Source {
		t.Fatalf("uploaded face source not cached")
	}
	if got := faceFor("Broken", 12).(*text.GoTextFace); got.Source != fontSource(styleRegular) {
		t.Fatalf("unparsable upload did not fall back")
	}
	if got := faceFor("BrianneHand", 12).(*text.GoTextFace); got.Source != fontSource(styleItalic) {
		t.Fatalf("family without upload did not map to a bundled style")
	}
	faceFor("Broken", 14)
	if lookups != 3 {
		t.Fatalf("%d font lookups, want one per family", lookups)
	}
}
