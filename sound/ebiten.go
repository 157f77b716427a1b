package sound

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"cutscene/assets"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// SampleRate is the rate of the shared audio context.
const SampleRate = 44100

// pollInterval is how often a one-shot player is checked for completion.
var pollInterval = 100 * time.Millisecond

// EbitenBackend plays clips through an ebiten audio context. Decoded PCM is
// cached by clip reference.
type EbitenBackend struct {
	actx  *audio.Context
	rate  int
	root  fs.FS
	pcm   *cache.Cache
	group singleflight.Group
}

// NewEbitenBackend returns a backend reading built-in clips from root.
func NewEbitenBackend(actx *audio.Context, root fs.FS) *EbitenBackend {
	return newEbitenBackend(actx, actx.SampleRate(), root)
}

func newEbitenBackend(actx *audio.Context, rate int, root fs.FS) *EbitenBackend {
	return &EbitenBackend{
		actx: actx,
		rate: rate,
		root: root,
		pcm:  cache.New(10*time.Minute, 5*time.Minute),
	}
}

// Open decodes clip (or takes it from the cache) and returns a paused track.
func (b *EbitenBackend) Open(ctx context.Context, clip assets.Clip, opts Options) (Track, error) {
	pcm, err := b.Decode(ctx, clip)
	if err != nil {
		return nil, err
	}
	var src io.Reader = bytes.NewReader(pcm)
	if opts.Loop {
		src = audio.NewInfiniteLoop(bytes.NewReader(pcm), int64(len(pcm)))
	}
	p, err := b.actx.NewPlayer(src)
	if err != nil {
		return nil, fmt.Errorf("player %s: %w", clip.Ref, err)
	}
	p.SetVolume(opts.Volume)
	return &ebitenTrack{
		p:    p,
		loop: opts.Loop,
		done: make(chan error, 1),
		stop: make(chan struct{}),
	}, nil
}

// Decode returns the PCM of clip at the context sample rate.
func (b *EbitenBackend) Decode(ctx context.Context, clip assets.Clip) ([]byte, error) {
	if v, ok := b.pcm.Get(clip.Ref); ok {
		return v.([]byte), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err, _ := b.group.Do(clip.Ref, func() (any, error) {
		data := clip.Data
		if data == nil {
			if b.root == nil {
				return nil, fmt.Errorf("no asset root for %s", clip.Ref)
			}
			var err error
			data, err = fs.ReadFile(b.root, clip.Ref)
			if err != nil {
				return nil, err
			}
		}
		pcm, err := decodePCM(b.rate, clip.Ref, data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", clip.Ref, err)
		}
		b.pcm.Set(clip.Ref, pcm, cache.DefaultExpiration)
		return pcm, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// CacheStats returns the number of cached clips and their total size.
func (b *EbitenBackend) CacheStats() (count int, size uint64) {
	for _, it := range b.pcm.Items() {
		if pcm, ok := it.Object.([]byte); ok {
			count++
			size += uint64(len(pcm))
		}
	}
	return count, size
}

type format int

const (
	formatUnknown format = iota
	formatVorbis
	formatMP3
	formatWAV
)

// formatOf picks the decoder from the file extension, or from the leading
// bytes for custom clips stored without one.
func formatOf(ref string, data []byte) format {
	switch strings.ToLower(path.Ext(ref)) {
	case ".ogg", ".oga":
		return formatVorbis
	case ".mp3":
		return formatMP3
	case ".wav":
		return formatWAV
	}
	switch {
	case bytes.HasPrefix(data, []byte("OggS")):
		return formatVorbis
	case bytes.HasPrefix(data, []byte("RIFF")):
		return formatWAV
	case bytes.HasPrefix(data, []byte("ID3")),
		len(data) > 1 && data[0] == 0xff && data[1]&0xe0 == 0xe0:
		return formatMP3
	}
	return formatUnknown
}

func decodePCM(rate int, ref string, data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	var (
		s   io.Reader
		err error
	)
	switch formatOf(ref, data) {
	case formatVorbis:
		s, err = vorbis.DecodeWithSampleRate(rate, r)
	case formatMP3:
		s, err = mp3.DecodeWithSampleRate(rate, r)
	case formatWAV:
		s, err = wav.DecodeWithSampleRate(rate, r)
	default:
		return nil, fmt.Errorf("unknown audio format")
	}
	if err != nil {
		return nil, err
	}
	return io.ReadAll(s)
}

type ebitenTrack struct {
	p    *audio.Player
	loop bool
	done chan error
	stop chan struct{}

	mu     sync.Mutex
	closed bool
}

func (t *ebitenTrack) Play() {
	t.p.Play()
	if !t.loop {
		go t.watch()
	}
}

func (t *ebitenTrack) watch() {
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-tick.C:
			if t.finished() {
				t.done <- nil
				return
			}
		}
	}
}

// finished closes the player once it stopped playing on its own.
func (t *ebitenTrack) finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.p.IsPlaying() {
		return false
	}
	t.closed = true
	_ = t.p.Close()
	return true
}

func (t *ebitenTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.stop)
	t.p.Pause()
	_ = t.p.Close()
}

func (t *ebitenTrack) Done() <-chan error { return t.done }
