package main

import (
	"image/color"
	"math"

	"cutscene/stage"

	"github.com/hajimehoshi/ebiten/v2"
	text "github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// whiteImage is a 1x1 white pixel used as the source for filled paths.
var whiteImage *ebiten.Image

func init() {
	whiteImage = ebiten.NewImage(3, 3)
	whiteImage.Fill(color.White)
}

var (
	bubbleBorder  = color.NRGBA{0x20, 0x20, 0x20, 0xff}
	bubbleBG      = color.NRGBA{0xff, 0xff, 0xff, 0xff}
	bubbleText    = color.Black
	captionBG     = color.NRGBA{0x00, 0x00, 0x00, 0xff}
	captionText   = color.White
	captionHeader = color.NRGBA{0xff, 0xd7, 0x40, 0xff}
)

// adjustBubbleRect calculates the on-screen rectangle for a bubble and clamps
// it to the visible area. The tail tip coordinates remain unchanged and must
// be handled by the caller if needed. Set noTail when the bubble has no arrow
// pointing to a character so the rectangle is based directly on (x, y).
func adjustBubbleRect(x, y, width, height, tailHeight, sw, sh int, noTail bool) (left, top, right, bottom int) {
	bottom = y
	if !noTail {
		bottom = y - tailHeight
	}
	left = x - width/2
	top = bottom - height

	if left < 0 {
		left = 0
	}
	if left+width > sw {
		left = sw - width
	}
	if top < 0 {
		top = 0
	}
	if top+height > sh {
		top = sh - height
	}

	right = left + width
	bottom = top + height
	return
}

// roundedRect returns a closed rounded rectangle path.
func roundedRect(left, top, right, bottom, radius float32) *vector.Path {
	var p vector.Path
	p.MoveTo(left+radius, top)
	p.LineTo(right-radius, top)
	p.Arc(right-radius, top+radius, radius, -math.Pi/2, 0, vector.Clockwise)
	p.LineTo(right, bottom-radius)
	p.Arc(right-radius, bottom-radius, radius, 0, math.Pi/2, vector.Clockwise)
	p.LineTo(left+radius, bottom)
	p.Arc(left+radius, bottom-radius, radius, math.Pi/2, math.Pi, vector.Clockwise)
	p.LineTo(left, top+radius)
	p.Arc(left+radius, top+radius, radius, math.Pi, 3*math.Pi/2, vector.Clockwise)
	p.Close()
	return &p
}

// fillPath fills p with col scaled by alpha.
func fillPath(dst *ebiten.Image, p *vector.Path, col color.Color, alpha float64) {
	r, g, b, a := col.RGBA()
	vs, is := p.AppendVerticesAndIndicesForFilling(nil, nil)
	for i := range vs {
		vs[i].SrcX = 1
		vs[i].SrcY = 1
		vs[i].ColorR = float32(r) / 0xffff * float32(alpha)
		vs[i].ColorG = float32(g) / 0xffff * float32(alpha)
		vs[i].ColorB = float32(b) / 0xffff * float32(alpha)
		vs[i].ColorA = float32(a) / 0xffff * float32(alpha)
	}
	op := &ebiten.DrawTrianglesOptions{
		ColorScaleMode: ebiten.ColorScaleModePremultipliedAlpha,
		AntiAlias:      true,
	}
	dst.DrawTriangles(vs, is, whiteImage, op)
}

func lineHeight(face text.Face) int {
	m := face.Metrics()
	return int(math.Ceil(m.HAscent) + math.Ceil(m.HDescent) + math.Ceil(m.HLineGap))
}

func drawLines(dst *ebiten.Image, lines []string, face text.Face, x, y int, clr color.Color, alpha float64) {
	lh := lineHeight(face)
	for i, l := range lines {
		op := &text.DrawOptions{}
		op.GeoM.Translate(float64(x), float64(y+i*lh))
		op.ColorScale.ScaleWithColor(clr)
		op.ColorScale.ScaleAlpha(float32(alpha))
		text.Draw(dst, l, face, op)
	}
}

// drawBubble draws the speech bubble with its tail pointing at (tailX, tailY).
func drawBubble(dst *ebiten.Image, box stage.TextBox, tailX, tailY int) {
	if !box.Visible() || box.Line.Text == "" {
		return
	}
	b := dst.Bounds()
	sw, sh := b.Dx(), b.Dy()
	pad := 14
	tailHeight := 18
	tailHalf := 10
	face := faceFor(box.Line.Font, gs.BubbleFontSz)
	width, lines := wrapText(box.Line.Text, face, float64(sw/3-2*pad))
	width += 2 * pad
	height := lineHeight(face)*len(lines) + 2*pad

	left, top, right, bottom := adjustBubbleRect(tailX, tailY, width, height, tailHeight, sw, sh, false)
	alpha := box.Alpha * gs.BubbleOpacity

	baseX := float32(min(max(tailX, left+tailHalf+8), right-tailHalf-8))
	tail := &vector.Path{}
	tail.MoveTo(baseX-float32(tailHalf), float32(bottom)-1)
	tail.LineTo(float32(tailX), float32(tailY))
	tail.LineTo(baseX+float32(tailHalf), float32(bottom)-1)
	tail.Close()

	border := roundedRect(float32(left)-2, float32(top)-2, float32(right)+2, float32(bottom)+2, 12)
	fillPath(dst, border, bubbleBorder, alpha)
	fillPath(dst, tail, bubbleBorder, alpha)
	fillPath(dst, roundedRect(float32(left), float32(top), float32(right), float32(bottom), 10), bubbleBG, alpha)

	clr := textColor(box.Line.Color, bubbleText)
	drawLines(dst, lines, face, left+pad, top+pad, clr, box.Alpha)
}

// drawCaption draws the caption box along the bottom of the screen.
func drawCaption(dst *ebiten.Image, box stage.TextBox) {
	if !box.Visible() || box.Line.Text == "" {
		return
	}
	b := dst.Bounds()
	sw, sh := b.Dx(), b.Dy()
	pad := 16
	face := faceFor(box.Line.Font, gs.CaptionFontSz)
	header := faceFor("bold", gs.CaptionFontSz*0.8)
	maxW := float64(sw*4/5 - 2*pad)
	_, lines := wrapText(box.Line.Text, face, maxW)

	height := lineHeight(face)*len(lines) + 2*pad
	if box.Line.Speaker != "" {
		height += lineHeight(header)
	}
	left := sw / 10
	top := sh - height - sh/20
	fillPath(dst, roundedRect(float32(left), float32(top), float32(sw-left), float32(top+height), 8), captionBG, box.Alpha*gs.BubbleOpacity)

	y := top + pad
	if box.Line.Speaker != "" {
		drawLines(dst, []string{box.Line.Speaker}, header, left+pad, y, captionHeader, box.Alpha)
		y += lineHeight(header)
	}
	drawLines(dst, lines, face, left+pad, y, textColor(box.Line.Color, captionText), box.Alpha)
}
