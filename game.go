package main

import (
	"context"
	"image/color"
	"io/fs"
	"path/filepath"
	"time"

	"cutscene/assets"
	"cutscene/scene"
	"cutscene/stage"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	text "github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/time/rate"
)

const (
	initialWindowW = 1280
	initialWindowH = 720
)

var backdrop = color.NRGBA{0x10, 0x12, 0x18, 0xff}

// Game drives a scene player from ebiten's update loop.
type Game struct {
	ctx     context.Context
	player  *scene.Player
	stage   *stage.Stage
	catalog *assets.Catalog
	root    fs.FS

	// allowFullscreen lets the stage switch the window to full screen.
	allowFullscreen bool
	// advanceLimiter drops advance requests that arrive faster than a
	// person could read.
	advanceLimiter *rate.Limiter

	last       time.Time
	fullscreen bool
	touches    []ebiten.TouchID
}

func newGame(ctx context.Context, p *scene.Player, st *stage.Stage, cat *assets.Catalog, root fs.FS) *Game {
	return &Game{
		ctx:            ctx,
		player:         p,
		stage:          st,
		catalog:        cat,
		root:           root,
		advanceLimiter: rate.NewLimiter(rate.Every(150*time.Millisecond), 1),
	}
}

// advancePressed reports a space, enter, click or tap this frame.
func (g *Game) advancePressed() bool {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) || inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		return true
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		return true
	}
	g.touches = inpututil.AppendJustPressedTouchIDs(g.touches[:0])
	return len(g.touches) > 0
}

func (g *Game) Update() error {
	select {
	case <-g.ctx.Done():
		g.player.Exit()
		return ebiten.Termination
	default:
	}

	now := time.Now()
	if !g.last.IsZero() {
		g.stage.Update(now.Sub(g.last))
	}
	g.last = now

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		if g.player.IsPlaying() {
			g.player.Exit()
		} else {
			return ebiten.Termination
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		g.allowFullscreen = !g.allowFullscreen
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) && !g.player.IsPlaying() {
		g.reloadCharacters()
	}

	if g.advancePressed() && g.advanceLimiter.Allow() {
		if g.player.IsPlaying() {
			if !g.player.Advance() {
				logDebug("advance dropped at event %d", g.player.Index())
			}
		} else {
			g.player.Start()
			g.player.Advance()
		}
		g.prefetchUpcoming()
	}

	want := g.allowFullscreen && g.stage.Fullscreen()
	if want != g.fullscreen {
		ebiten.SetFullscreen(want)
		g.fullscreen = want
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(backdrop)
	drawStage(screen, g.root, g.stage.Snapshot(), g.catalog.Side)
	if !g.player.IsPlaying() && g.stage.Settled() {
		drawIdleHint(screen)
	}
}

// prefetchUpcoming decodes the pose of the next line off the update loop so
// it is cached by the time the line shows.
func (g *Game) prefetchUpcoming() {
	ev, ok := g.player.Upcoming()
	if !ok || ev.Speaker == "" {
		return
	}
	go func() {
		clips, err := g.catalog.Resolve(g.ctx, poseQuery(ev))
		if err != nil || len(clips) == 0 {
			return
		}
		clipImage(g.root, clips[0])
	}()
}

func poseQuery(ev scene.Event) assets.Query {
	return assets.Query{Character: ev.Speaker, Role: assets.RoleImage, Emotion: ev.Emotion, Variant: ev.SkinVariant}
}

// reloadCharacters rereads characters.json and drops decoded images and
// fonts so edited custom characters show without a restart.
func (g *Game) reloadCharacters() {
	n, err := g.catalog.LoadCustom(filepath.Join(dataDirPath, charactersFile))
	if err != nil {
		logWarn("reload characters: %v", err)
		return
	}
	clearImageCache()
	clearFontCache()
	logDebug("reloaded %d custom characters", n)
}

func drawIdleHint(screen *ebiten.Image) {
	face := faceFor("", 18)
	msg := "Space or click to play, F5 to reload characters, Esc to quit"
	w := measureWidth(msg, face)
	b := screen.Bounds()
	op := &text.DrawOptions{}
	op.GeoM.Translate((float64(b.Dx())-w)/2, float64(b.Dy())/2)
	op.ColorScale.ScaleWithColor(color.Gray{0xb0})
	text.Draw(screen, msg, face, op)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if !g.fullscreen && outsideWidth > 512 && outsideHeight > 384 {
		gs.WindowWidth = outsideWidth
		gs.WindowHeight = outsideHeight
	}
	return outsideWidth, outsideHeight
}

func runGame(g *Game, title string) error {
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(ebiten.SyncWithFPS)
	w, h := gs.WindowWidth, gs.WindowHeight
	if w < 512 || h < 384 {
		w, h = initialWindowW, initialWindowH
	}
	ebiten.SetWindowSize(w, h)
	return ebiten.RunGame(g)
}
