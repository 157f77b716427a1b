package main

import (
	"errors"
	"fmt"

	"cutscene/scene"

	"github.com/sqweek/dialog"
	clipboard "golang.design/x/clipboard"
)

var (
	errScriptDialogCancelled = errors.New("script dialog cancelled")
	errClipboardEmpty        = errors.New("clipboard holds no text")
)

// Overridden in tests.
var (
	readClipboard  = func() []byte { return clipboard.Read(clipboard.FmtText) }
	pickScriptFile = pickScriptFileDialog
)

func pickScriptFileDialog() (string, error) {
	filename, err := dialog.File().Filter("Cutscene scripts", "json", "JSON").Title("Open script").Load()
	if err != nil {
		if err == dialog.Cancelled {
			return "", errScriptDialogCancelled
		}
		return "", err
	}
	return filename, nil
}

// loadScriptSource reads the script from path, the clipboard, or a file
// picked in a native dialog, in that order of preference.
func loadScriptSource(path string, fromClipboard bool) (scene.Script, string, error) {
	if path == "" && fromClipboard {
		data := readClipboard()
		if len(data) == 0 {
			return nil, "", errClipboardEmpty
		}
		s, err := scene.ParseScript(data)
		if err != nil {
			return nil, "", fmt.Errorf("clipboard: %w", err)
		}
		return s, "clipboard", nil
	}
	if path == "" {
		var err error
		if path, err = pickScriptFile(); err != nil {
			return nil, "", err
		}
	}
	s, err := scene.LoadScript(path)
	if err != nil {
		return nil, "", err
	}
	return s, path, nil
}

// unknownSpeakers lists the speakers of script that are neither built in nor
// custom. They still play, drawn as placeholders.
func unknownSpeakers(cat interface{ Known(string) bool }, script scene.Script) []string {
	var out []string
	for _, name := range script.Speakers() {
		if !cat.Known(name) {
			out = append(out, name)
		}
	}
	return out
}
