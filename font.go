package main

import (
	"bytes"
	"log"
	"strings"
	"sync"

	text "github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"
)

type fontStyle int

const (
	styleRegular fontStyle = iota
	styleBold
	styleItalic
	styleBoldItalic
	styleMono
	styleSmallCaps
)

var fontTTF = map[fontStyle][]byte{
	styleRegular:    goregular.TTF,
	styleBold:       gobold.TTF,
	styleItalic:     goitalic.TTF,
	styleBoldItalic: gobolditalic.TTF,
	styleMono:       gomono.TTF,
	styleSmallCaps:  gosmallcaps.TTF,
}

var (
	fontMu      sync.Mutex
	fontSources = map[fontStyle]*text.GoTextFaceSource{}
)

// familySources caches uploaded fonts by family; nil marks a family with no
// usable upload. Guarded by fontMu.
var familySources = map[string]*text.GoTextFaceSource{}

// fontData looks up an uploaded font family. main points it at the catalog.
var fontData = func(family string) ([]byte, bool) { return nil, false }

// styleForFont maps a character's font family to the closest bundled Go font.
func styleForFont(family string) fontStyle {
	f := strings.ToLower(family)
	switch {
	case f == "":
		return styleRegular
	case strings.Contains(f, "script"), strings.Contains(f, "hand"), strings.Contains(f, "informal"):
		return styleItalic
	case strings.Contains(f, "blackadder"):
		return styleBoldItalic
	case strings.Contains(f, "type"), strings.Contains(f, "newsflash"):
		return styleMono
	case strings.Contains(f, "krusty"), strings.Contains(f, "unmasked"), strings.Contains(f, "cromagnum"):
		return styleSmallCaps
	case strings.Contains(f, "bold"), strings.Contains(f, "condensed"):
		return styleBold
	}
	return styleRegular
}

func fontSource(style fontStyle) *text.GoTextFaceSource {
	fontMu.Lock()
	defer fontMu.Unlock()
	if src, ok := fontSources[style]; ok {
		return src
	}
	src, err := text.NewGoTextFaceSource(bytes.NewReader(fontTTF[style]))
	if err != nil {
		log.Fatalf("failed to parse font: %v", err)
	}
	fontSources[style] = src
	return src
}

// familySource returns the face source of an uploaded font, or nil.
func familySource(family string) *text.GoTextFaceSource {
	if family == "" {
		return nil
	}
	fontMu.Lock()
	src, ok := familySources[family]
	fontMu.Unlock()
	if ok {
		return src
	}
	if data, found := fontData(family); found {
		var err error
		if src, err = text.NewGoTextFaceSource(bytes.NewReader(data)); err != nil {
			logWarn("font %s: %v", family, err)
			src = nil
		}
	}
	fontMu.Lock()
	familySources[family] = src
	fontMu.Unlock()
	return src
}

func clearFontCache() {
	fontMu.Lock()
	familySources = map[string]*text.GoTextFaceSource{}
	fontMu.Unlock()
}

// faceFor returns the face for a character font at size pixels. An uploaded
// font of that family wins over the closest bundled Go font.
func faceFor(family string, size float64) text.Face {
	src := familySource(family)
	if src == nil {
		src = fontSource(styleForFont(family))
	}
	return &text.GoTextFace{Source: src, Size: size}
}
