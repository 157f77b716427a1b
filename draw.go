package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"strconv"
	"strings"
	"sync"

	"cutscene/assets"
	"cutscene/stage"

	"github.com/hajimehoshi/ebiten/v2"
	text "github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/colornames"
	_ "golang.org/x/image/webp"
)

var (
	imageMu    sync.Mutex
	imageCache = map[string]*ebiten.Image{}
)

var placeholderColor = color.NRGBA{0x60, 0x60, 0x70, 0xff}

// decodeClipImage decodes an image clip from its bytes or from root.
func decodeClipImage(root fs.FS, c assets.Clip) (image.Image, error) {
	data := c.Data
	if data == nil {
		if root == nil {
			return nil, fmt.Errorf("image %s: no asset root", c.Ref)
		}
		var err error
		if data, err = fs.ReadFile(root, c.Ref); err != nil {
			return nil, fmt.Errorf("image %s: %w", c.Ref, err)
		}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", c.Ref, err)
	}
	return img, nil
}

// clipImage returns the ebiten image for c. Failures are cached as nil so a
// broken file is reported once.
func clipImage(root fs.FS, c assets.Clip) *ebiten.Image {
	key := c.Ref
	if c.Custom() {
		key = "custom:" + c.Ref
	}
	imageMu.Lock()
	img, ok := imageCache[key]
	imageMu.Unlock()
	if ok {
		return img
	}
	src, err := decodeClipImage(root, c)
	if err != nil {
		logWarn("%v", err)
	} else {
		img = ebiten.NewImageFromImage(src)
	}
	imageMu.Lock()
	imageCache[key] = img
	imageMu.Unlock()
	return img
}

func clearImageCache() {
	imageMu.Lock()
	imageCache = map[string]*ebiten.Image{}
	imageMu.Unlock()
}

// textColor parses a CSS-like color: #rgb, #rrggbb or a color name.
func textColor(s string, def color.Color) color.Color {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return def
	}
	if c, ok := colornames.Map[s]; ok {
		return c
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return def
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return def
	}
	return color.NRGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xff}
}

// actorRect is where an actor is drawn, in screen pixels.
type actorRect struct {
	cx, bottom float64
	maxW, maxH float64
}

func backRect(a stage.Actor, sw, sh int) actorRect {
	return actorRect{
		cx:     float64(sw) * a.Slot.Center / 100,
		bottom: float64(sh) * 0.55,
		maxW:   float64(sw) * a.Slot.Width / 100 * 0.9,
		maxH:   float64(sh) * 0.45,
	}
}

func frontRect(side assets.Side, sw, sh int) actorRect {
	cx := float64(sw) * 0.78
	if side == assets.Left {
		cx = float64(sw) * 0.22
	}
	return actorRect{cx: cx, bottom: float64(sh), maxW: float64(sw) * 0.4, maxH: float64(sh) * 0.7}
}

// fit scales (w, h) down or up to fit inside the rect.
func (r actorRect) fit(w, h int) float64 {
	if w == 0 || h == 0 {
		return 1
	}
	return min(r.maxW/float64(w), r.maxH/float64(h))
}

// bubbleAnchor is the point above a front actor that the bubble tail hits.
func bubbleAnchor(side assets.Side, sw, sh int) (int, int) {
	r := frontRect(side, sw, sh)
	x := r.cx - float64(sw)*0.12
	if side == assets.Left {
		x = r.cx + float64(sw)*0.12
	}
	return int(x), int(r.bottom - r.maxH*0.85)
}

func drawActor(dst *ebiten.Image, root fs.FS, a stage.Actor, r actorRect, face text.Face) {
	var img *ebiten.Image
	if !a.Placeholder() {
		img = clipImage(root, a.Image)
	}
	if img == nil {
		w := float32(min(r.maxW, r.maxH*0.6))
		h := float32(r.maxH * 0.8)
		x := float32(r.cx) - w/2
		y := float32(r.bottom) - h
		clr := placeholderColor
		clr.A = uint8(float64(clr.A) * a.Alpha)
		vector.DrawFilledRect(dst, x, y, w, h, clr, false)
		op := &text.DrawOptions{}
		op.GeoM.Translate(float64(x)+6, float64(y)+6)
		op.ColorScale.ScaleAlpha(float32(a.Alpha))
		text.Draw(dst, a.Name, face, op)
		return
	}
	b := img.Bounds()
	scale := r.fit(b.Dx(), b.Dy())
	op := &ebiten.DrawImageOptions{Filter: ebiten.FilterLinear}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(r.cx-float64(b.Dx())*scale/2, r.bottom-float64(b.Dy())*scale)
	if a.Dim {
		op.ColorScale.Scale(0.4, 0.4, 0.4, 1)
	}
	op.ColorScale.ScaleAlpha(float32(a.Alpha))
	dst.DrawImage(img, op)
}

// drawStage renders a snapshot: back row, front actors, then text.
func drawStage(dst *ebiten.Image, root fs.FS, snap stage.Snapshot, sideOf func(string) assets.Side) {
	b := dst.Bounds()
	sw, sh := b.Dx(), b.Dy()
	label := faceFor("", 14)
	for _, a := range snap.Actors {
		if a.Placed {
			drawActor(dst, root, a, backRect(a, sw, sh), label)
			continue
		}
		drawActor(dst, root, a, frontRect(sideOf(a.Name), sw, sh), label)
	}
	x, y := bubbleAnchor(snap.Bubble.Line.Side, sw, sh)
	drawBubble(dst, snap.Bubble, x, y)
	drawCaption(dst, snap.Caption)
}
