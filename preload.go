package main

import (
	"context"
	"strings"
	"sync"

	"cutscene/assets"
	"cutscene/censor"
	"cutscene/scene"

	"github.com/dustin/go-humanize"
	"github.com/remeh/sizedwaitgroup"
)

type clipDecoder interface {
	Decode(ctx context.Context, clip assets.Clip) ([]byte, error)
}

type preloadStats struct {
	Clips  int
	Failed int
	Bytes  uint64
}

func (s preloadStats) String() string {
	msg := humanize.Comma(int64(s.Clips)) + " clips, " + humanize.Bytes(s.Bytes)
	if s.Failed > 0 {
		msg += ", " + humanize.Comma(int64(s.Failed)) + " failed"
	}
	return msg
}

// scriptQueries lists every sound a script can ask for, without duplicates.
func scriptQueries(script scene.Script) []assets.Query {
	seen := make(map[assets.Query]bool)
	var out []assets.Query
	add := func(q assets.Query) {
		if !seen[q] {
			seen[q] = true
			out = append(out, q)
		}
	}
	voices := make(map[string]string)
	add(assets.Query{Role: assets.RoleBackground, Character: assets.DefaultBackground})
	for _, ev := range script {
		if ev.Speaker == "" {
			continue
		}
		switch ev.Type {
		case scene.Enter:
			if ev.VoiceVariant != "" {
				voices[ev.Speaker] = ev.VoiceVariant
			}
			add(assets.Query{Character: ev.Speaker, Role: assets.RoleIntro})
			add(assets.Query{Character: ev.Speaker, Role: assets.RoleBackground})
			add(assets.Query{Character: ev.Speaker, Role: assets.RoleSpawn})
		case scene.Leave:
			add(assets.Query{Character: ev.Speaker, Role: assets.RoleDespawn})
		case scene.Say:
			emotion := strings.ToUpper(ev.Emotion)
			if emotion == "" {
				emotion = "SAY"
			}
			variant := ev.VoiceVariant
			if variant != "" {
				voices[ev.Speaker] = variant
			} else {
				variant = voices[ev.Speaker]
			}
			if emotion != "SILENT" {
				add(assets.Query{Character: ev.Speaker, Role: assets.RoleVoice, Emotion: emotion, Variant: variant})
			}
			if ev.SFX != "" {
				add(assets.Query{Role: assets.RoleSFX, Name: ev.SFX})
			}
		}
	}
	return out
}

// hasCensoredLine reports whether any spoken line of script plays the
// censored clip instead of a voice.
func hasCensoredLine(script scene.Script, filter *censor.Filter) bool {
	for _, ev := range script {
		if ev.Type == scene.Say && ev.Speaker != "" && !strings.EqualFold(ev.Emotion, "SILENT") && filter.WasCensored(ev.Text) {
			return true
		}
	}
	return false
}

// preloadScript decodes every clip the script can play so the first play of
// each does not stall. It runs at most workers decodes at once. The censored
// clip is included when filter censors a spoken line.
func preloadScript(ctx context.Context, res assets.Resolver, dec clipDecoder, script scene.Script, filter *censor.Filter, censoredClip string, workers int) preloadStats {
	if workers <= 0 {
		workers = 1
	}
	var clips []assets.Clip
	if censoredClip != "" && hasCensoredLine(script, filter) {
		clips = append(clips, assets.Clip{Ref: censoredClip})
	}
	for _, q := range scriptQueries(script) {
		found, err := res.Resolve(ctx, q)
		if err != nil {
			logWarn("preload %s %s: %v", q.Character, q.Role, err)
			continue
		}
		// Only the first of a fallback chain is played unless it fails.
		if q.Role != assets.RoleVoice && len(found) > 1 {
			found = found[:1]
		}
		clips = append(clips, found...)
	}

	var (
		mu    sync.Mutex
		stats preloadStats
	)
	wg := sizedwaitgroup.New(workers)
	for _, c := range clips {
		if ctx.Err() != nil {
			break
		}
		wg.Add()
		go func(c assets.Clip) {
			defer wg.Done()
			pcm, err := dec.Decode(ctx, c)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.Failed++
				logDebug("preload %s: %v", c.Ref, err)
				return
			}
			stats.Clips++
			stats.Bytes += uint64(len(pcm))
		}(c)
	}
	wg.Wait()
	return stats
}
