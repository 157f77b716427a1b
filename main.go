package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cutscene/assets"
	"cutscene/blobstore"
	"cutscene/censor"
	"cutscene/scene"
	"cutscene/shuffle"
	"cutscene/sound"
	"cutscene/stage"

	"github.com/dustin/go-humanize"
	"github.com/hajimehoshi/ebiten/v2/audio"
	clipboard "golang.design/x/clipboard"
)

const (
	blobFile       = "custom_assets.bin"
	charactersFile = "characters.json"
)

var (
	scriptPath    string
	fromClipboard bool
	importPath    string
	sfxPath       string
	fontPath      string
	assetsDir     string
	listChars     bool
	doDebug       bool
	noFullscreen  bool
	noNotify      bool
	noPreload     bool
)

func main() {
	flag.StringVar(&scriptPath, "script", "", "play the script in this JSON file")
	flag.BoolVar(&fromClipboard, "clipboard", false, "read the script from the clipboard")
	flag.StringVar(&importPath, "import", "", "merge custom assets from another blob container")
	flag.StringVar(&sfxPath, "sfx", "", "import a sound effect file as custom:<name> and exit")
	flag.StringVar(&fontPath, "font", "", "import a TTF/OTF font for custom characters and exit")
	flag.StringVar(&dataDirPath, "data", dataDirPath, "directory holding settings and custom assets")
	flag.StringVar(&assetsDir, "assets", "", "directory of built-in images and sounds (default <data>/assets)")
	flag.BoolVar(&listChars, "list", false, "list known characters and exit")
	flag.BoolVar(&doDebug, "debug", false, "verbose/debug logging")
	flag.BoolVar(&noFullscreen, "windowed", false, "never switch to full screen")
	flag.BoolVar(&noNotify, "nonotify", false, "no desktop notification when a script ends")
	flag.BoolVar(&noPreload, "nopreload", false, "decode clips on first use instead of up front")
	flag.Parse()

	setupLogging(doDebug)
	sound.Logf = logWarn
	scene.Logf = logWarn
	defer func() {
		if r := recover(); r != nil {
			logError("panic: %v", r)
			os.Exit(1)
		}
	}()

	loadSettings()
	if noNotify {
		gs.Notifications = false
	}
	if noPreload {
		gs.Preload = false
	}
	if assetsDir == "" {
		assetsDir = filepath.Join(dataDirPath, "assets")
	}

	store, err := openStore(filepath.Join(dataDirPath, blobFile), importPath)
	if err != nil {
		log.Fatalf("custom assets: %v", err)
	}
	catalog, err := newCatalog(store)
	if err != nil {
		log.Fatalf("characters: %v", err)
	}
	fontData = func(family string) ([]byte, bool) { return catalog.Font(context.Background(), family) }

	if listChars {
		for _, name := range catalog.Characters() {
			p := catalog.Profile(name)
			fmt.Printf("%-16s %-5s %s\n", name, p.Zone, p.Side)
		}
		return
	}
	if sfxPath != "" {
		key, err := importSFX(catalog, sfxPath)
		if err != nil {
			log.Fatalf("import sfx: %v", err)
		}
		fmt.Printf("custom:%s\n", key)
		return
	}
	if fontPath != "" {
		family, err := importFont(catalog, fontPath)
		if err != nil {
			log.Fatalf("import font: %v", err)
		}
		fmt.Println(family)
		return
	}

	if fromClipboard {
		if err := clipboard.Init(); err != nil {
			log.Fatalf("clipboard init: %v", err)
		}
	}
	script, source, err := loadScriptSource(scriptPath, fromClipboard)
	if errors.Is(err, errScriptDialogCancelled) {
		return
	}
	if err != nil {
		log.Fatalf("script: %v", err)
	}
	logDebug("loaded %d events from %s", len(script), source)
	for _, name := range unknownSpeakers(catalog, script) {
		logWarn("script: unknown character %q, drawn as a placeholder", name)
	}
	if source != "clipboard" {
		gs.LastScript = source
	}

	filter := censor.New(censor.Default().Terms())
	filter.Add(gs.BannedWords...)

	root := os.DirFS(assetsDir)
	actx := audio.NewContext(sound.SampleRate)
	backend := sound.NewEbitenBackend(actx, root)
	manager := sound.NewManager(backend, catalog, shuffle.New(), filter)

	st := stage.New()
	st.FadeTime = time.Duration(gs.FadeMS) * time.Millisecond

	player := scene.NewPlayer(catalog, manager, st, filter)
	player.SetScript(script)
	player.OnFinish = notifyFinished
	manager.OnVoiceEnded(player.VoiceEnded)
	applySettings(manager, player)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if gs.Preload {
		go runPreload(ctx, catalog, backend, script, filter)
	}

	g := newGame(ctx, player, st, catalog, root)
	g.allowFullscreen = gs.Fullscreen && !noFullscreen
	player.Start()
	if err := runGame(g, "Cutscene - "+filepath.Base(source)); err != nil {
		logError("ebiten: %v", err)
	}
	player.Exit()
	saveSettings()
}

func openStore(path, importFrom string) (*blobstore.Store, error) {
	store, err := blobstore.Open(path)
	if err != nil {
		return nil, err
	}
	if importFrom == "" {
		return store, nil
	}
	n, err := store.Import(importFrom)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", importFrom, err)
	}
	if err := store.Save(); err != nil {
		return nil, err
	}
	logDebug("imported %d blobs, store now %d entries (%s)", n, store.Len(), humanize.Bytes(store.Size()))
	return store, nil
}

func newCatalog(store *blobstore.Store) (*assets.Catalog, error) {
	catalog, err := assets.NewCatalog(store)
	if err != nil {
		return nil, err
	}
	catalog.DefaultBackground = gs.DefaultBackground
	catalog.SFXDir = gs.SFXDir
	catalog.SetSFXKeys(gs.SFXKeys)
	n, err := catalog.LoadCustom(filepath.Join(dataDirPath, charactersFile))
	if err != nil {
		logWarn("custom characters: %v", err)
	} else if n > 0 {
		logDebug("loaded %d custom characters", n)
	}
	return catalog, nil
}

func importSFX(catalog *assets.Catalog, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	key, err := catalog.ImportSFX(path, data)
	if err != nil {
		return "", err
	}
	if err := catalog.Store().Save(); err != nil {
		return "", err
	}
	gs.SFXKeys = catalog.SFXKeys()
	saveSettings()
	return key, nil
}

func importFont(catalog *assets.Catalog, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	family, err := catalog.ImportFont(path, data)
	if err != nil {
		return "", err
	}
	return family, catalog.Store().Save()
}

func runPreload(ctx context.Context, catalog *assets.Catalog, backend *sound.EbitenBackend, script scene.Script, filter *censor.Filter) {
	start := time.Now()
	stats := preloadScript(ctx, catalog, backend, script, filter, gs.CensoredClip, gs.PreloadWorkers)
	logDebug("preloaded %s in %v", stats, time.Since(start).Round(time.Millisecond))
	var root fs.FS = os.DirFS(assetsDir)
	for _, name := range script.Speakers() {
		clips, err := catalog.Resolve(ctx, assets.Query{Character: name, Role: assets.RoleImage, Emotion: "SAY"})
		if err != nil || len(clips) == 0 {
			continue
		}
		clipImage(root, clips[0])
	}
}
