package main

import (
	"os"
	"path/filepath"
	"runtime"
)

// dataDirPath holds settings, custom characters and the custom asset blob
// container. On macOS it lives under Application Support; elsewhere it sits
// next to the executable so a portable copy keeps its data.
var dataDirPath = defaultDataDir()

func defaultDataDir() string {
	if runtime.GOOS == "darwin" {
		if dir, err := os.UserConfigDir(); err == nil {
			return filepath.Join(dir, "cutscene")
		}
	}
	if exe, err := os.Executable(); err == nil {
		if dir, err := filepath.Abs(filepath.Dir(exe)); err == nil {
			return filepath.Join(dir, "data")
		}
	}
	return "data"
}
