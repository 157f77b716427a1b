package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cutscene/scene"
	"cutscene/sound"
)

func withDataDir(t *testing.T) string {
	t.Helper()
	orig := dataDirPath
	dataDirPath = t.TempDir()
	t.Cleanup(func() {
		dataDirPath = orig
		gs = gsdef
	})
	return dataDirPath
}

func TestLoadSettingsMissingFileUsesDefaults(t *testing.T) {
	withDataDir(t)
	gs.Music = false
	if loadSettings() {
		t.Fatalf("expected false for a missing file")
	}
	if !gs.Music || gs.SkipBlockMS != 2000 {
		t.Fatalf("defaults not applied: %+v", gs)
	}
}

func TestSaveAndLoadSettings(t *testing.T) {
	withDataDir(t)
	gs = gsdef
	gs.Music = false
	gs.BannedWords = []string{"heck"}
	gs.SFXKeys = map[string]string{"boing": "boing"}
	saveSettings()

	gs = gsdef
	if !loadSettings() {
		t.Fatalf("load failed")
	}
	if gs.Music || len(gs.BannedWords) != 1 || gs.SFXKeys["boing"] != "boing" {
		t.Fatalf("round trip lost values: %+v", gs)
	}
}

func TestLoadSettingsVersionMismatch(t *testing.T) {
	dir := withDataDir(t)
	data := []byte(`{"Version": 1, "Music": false}`)
	if err := os.WriteFile(filepath.Join(dir, settingsFile), data, 0o644); err != nil {
		t.Fatal(err)
	}
	if loadSettings() {
		t.Fatalf("old version should not load")
	}
	if !gs.Music {
		t.Fatalf("old settings leaked into gs")
	}
}

func TestLoadSettingsClampsValues(t *testing.T) {
	dir := withDataDir(t)
	data := []byte(`{"Version": 3, "VoiceVolume": 4, "IdleResetMS": 0, "PreloadWorkers": -2, "CensoredClip": ""}`)
	if err := os.WriteFile(filepath.Join(dir, settingsFile), data, 0o644); err != nil {
		t.Fatal(err)
	}
	if !loadSettings() {
		t.Fatalf("load failed")
	}
	if gs.VoiceVolume != gsdef.VoiceVolume || gs.IdleResetMS != gsdef.IdleResetMS ||
		gs.PreloadWorkers != gsdef.PreloadWorkers || gs.CensoredClip != "SWEAR.ogg" {
		t.Fatalf("values not clamped: %+v", gs)
	}
}

func TestApplySettings(t *testing.T) {
	withDataDir(t)
	gs = gsdef
	gs.VoiceVolume = 0.3
	gs.SkipBlockMS = 500
	gs.IdleResetMS = 1000
	m := sound.NewManager(nil, nil, nil, nil)
	p := scene.NewPlayer(nil, m, nil, nil)
	applySettings(m, p)
	if m.VoiceVolume != 0.3 {
		t.Fatalf("voice volume %v", m.VoiceVolume)
	}
	if p.SkipBlock != 500*time.Millisecond || p.IdleDelay != time.Second {
		t.Fatalf("timings %v %v", p.SkipBlock, p.IdleDelay)
	}
}
