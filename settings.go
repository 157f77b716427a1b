package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"cutscene/scene"
	"cutscene/sound"
)

const SETTINGS_VERSION = 3

var gs settings = gsdef

// settingsLoaded reports whether settings were successfully loaded from disk.
var settingsLoaded bool

var gsdef settings = settings{
	Version: SETTINGS_VERSION,

	Music:             true,
	SoundEffects:      true,
	VoiceVolume:       0.8,
	BackgroundVolume:  0.5,
	IntroVolume:       1.0,
	EffectsVolume:     1.0,
	CensoredClip:      "SWEAR.ogg",
	DefaultBackground: "background.mp3",
	SFXDir:            "sfx",
	BannedWords:       []string{},

	SkipBlockMS: 2000,
	IdleResetMS: 2500,
	FadeMS:      350,

	Fullscreen:     true,
	Notifications:  true,
	Preload:        true,
	PreloadWorkers: 4,
	BubbleOpacity:  0.9,
	CaptionFontSz:  22,
	BubbleFontSz:   20,
	WindowWidth:    1280,
	WindowHeight:   720,
}

type settings struct {
	Version int

	Music             bool
	SoundEffects      bool
	VoiceVolume       float64
	BackgroundVolume  float64
	IntroVolume       float64
	EffectsVolume     float64
	CensoredClip      string
	DefaultBackground string
	SFXDir            string
	BannedWords       []string
	SFXKeys           map[string]string

	SkipBlockMS int
	IdleResetMS int
	FadeMS      int

	Fullscreen     bool
	Notifications  bool
	Preload        bool
	PreloadWorkers int
	BubbleOpacity  float64
	CaptionFontSz  float64
	BubbleFontSz   float64
	WindowWidth    int
	WindowHeight   int
	LastScript     string
}

const settingsFile = "settings.json"

func loadSettings() bool {
	path := filepath.Join(dataDirPath, settingsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		gs = gsdef
		settingsLoaded = false
		return false
	}

	tmp := gsdef
	if err := json.Unmarshal(data, &tmp); err != nil {
		logWarn("settings: %v", err)
		gs = gsdef
		settingsLoaded = false
		return false
	}
	if tmp.Version != SETTINGS_VERSION {
		logDebug("settings version %d, want %d; using defaults", tmp.Version, SETTINGS_VERSION)
		gs = gsdef
		settingsLoaded = false
		return false
	}
	gs = tmp
	settingsLoaded = true

	if gs.BannedWords == nil {
		gs.BannedWords = []string{}
	}
	clampVolume(&gs.VoiceVolume, gsdef.VoiceVolume)
	clampVolume(&gs.BackgroundVolume, gsdef.BackgroundVolume)
	clampVolume(&gs.IntroVolume, gsdef.IntroVolume)
	clampVolume(&gs.EffectsVolume, gsdef.EffectsVolume)
	if gs.BubbleOpacity <= 0 || gs.BubbleOpacity > 1 {
		gs.BubbleOpacity = gsdef.BubbleOpacity
	}
	if gs.SkipBlockMS < 0 {
		gs.SkipBlockMS = gsdef.SkipBlockMS
	}
	if gs.IdleResetMS <= 0 {
		gs.IdleResetMS = gsdef.IdleResetMS
	}
	if gs.FadeMS < 0 {
		gs.FadeMS = gsdef.FadeMS
	}
	if gs.PreloadWorkers <= 0 {
		gs.PreloadWorkers = gsdef.PreloadWorkers
	}
	if gs.CensoredClip == "" {
		gs.CensoredClip = gsdef.CensoredClip
	}
	if gs.DefaultBackground == "" {
		gs.DefaultBackground = gsdef.DefaultBackground
	}
	if gs.SFXDir == "" {
		gs.SFXDir = gsdef.SFXDir
	}
	return settingsLoaded
}

func clampVolume(v *float64, def float64) {
	if *v < 0 || *v > 1 {
		*v = def
	}
}

// applySettings pushes gs into the running components.
func applySettings(m *sound.Manager, p *scene.Player) {
	if m != nil {
		m.VoiceVolume = gs.VoiceVolume
		m.BackgroundVolume = gs.BackgroundVolume
		m.IntroVolume = gs.IntroVolume
		m.EffectsVolume = gs.EffectsVolume
		m.CensoredClip = gs.CensoredClip
		m.SetMusic(gs.Music)
		m.SetEffects(gs.SoundEffects)
	}
	if p != nil {
		p.SkipBlock = time.Duration(gs.SkipBlockMS) * time.Millisecond
		p.IdleDelay = time.Duration(gs.IdleResetMS) * time.Millisecond
	}
}

func saveSettings() {
	data, err := json.MarshalIndent(gs, "", "  ")
	if err != nil {
		logError("save settings: %v", err)
		return
	}
	if err := os.MkdirAll(dataDirPath, 0o755); err != nil {
		logError("save settings: %v", err)
		return
	}
	path := filepath.Join(dataDirPath, settingsFile)
	if err := os.WriteFile(path+".tmp", data, 0644); err != nil {
		logError("save settings: %v", err)
		return
	}
	if err := os.Rename(path+".tmp", path); err != nil {
		logError("save settings: %v", err)
	}
}
