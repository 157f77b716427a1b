package main

import (
	"os"
	"path/filepath"
	"testing"
)

// TestMain points the data and log directories at a scratch dir so tests
// never touch a real install.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "cutscene-test")
	if err != nil {
		panic(err)
	}
	dataDirPath = filepath.Join(dir, "data")
	logDir = filepath.Join(dir, "logs")
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}
