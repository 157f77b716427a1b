package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"cutscene/scene"

	"github.com/gen2brain/beeep"
	"github.com/hako/durafmt"
)

var beeepNotify = func(title, body string) error { return beeep.Notify(title, body, "") }

// summaryText describes a finished session for humans.
func summaryText(sum scene.Summary) string {
	d := durafmt.Parse(sum.Elapsed.Round(time.Second)).LimitFirstN(2).String()
	if sum.Elapsed < time.Second {
		d = "under a second"
	}
	lines := "lines"
	if sum.Lines == 1 {
		lines = "line"
	}
	if sum.Completed {
		return fmt.Sprintf("Played %d %s in %s.", sum.Lines, lines, d)
	}
	return fmt.Sprintf("Stopped after %d %s (%s).", sum.Lines, lines, d)
}

// notifyDesktop shows a desktop notification, best-effort and non-fatal.
func notifyDesktop(title, body string) {
	if body == "" {
		return
	}
	// Skip on headless Linux without DISPLAY; beeep would error.
	if runtime.GOOS == "linux" && (os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "") {
		return
	}
	if err := beeepNotify(title, body); err != nil {
		logDebug("notify: %v", err)
	}
}

func notifyFinished(sum scene.Summary) {
	msg := summaryText(sum)
	logDebug("session ended: %s", msg)
	if gs.Notifications {
		notifyDesktop("Cutscene", msg)
	}
}
