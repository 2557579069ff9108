// Package capture samples the display and emits encoded frames. Each
// cycle runs grab, compare, encode, emit, then sleeps out the remainder
// of the frame interval; settings changes apply on the next cycle without
// restarting the loop.
package capture

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/kbinani/screenshot"
	"github.com/rs/zerolog"
)

// Settings are the live-tunable capture parameters.
type Settings struct {
	FPS     int
	Quality int
}

func (s Settings) normalized() Settings {
	if s.FPS <= 0 {
		s.FPS = 1
	}
	if s.Quality <= 0 || s.Quality > 100 {
		s.Quality = 80
	}
	return s
}

// Pipeline drives the capture loop for one display.
type Pipeline struct {
	display   int
	threshold float64
	emit      func([]byte)
	log       zerolog.Logger

	mu       sync.Mutex
	settings Settings

	prev *image.RGBA
}

// New builds a pipeline. threshold is the mean-pixel-difference gate; 0
// means every captured frame is encoded and emitted (exact-duplicate
// suppression still happens downstream).
func New(display int, threshold float64, s Settings, emit func([]byte), log zerolog.Logger) *Pipeline {
	return &Pipeline{
		display:   display,
		threshold: threshold,
		emit:      emit,
		log:       log,
		settings:  s.normalized(),
	}
}

// Update replaces the settings; the running loop picks them up on its
// next cycle.
func (p *Pipeline) Update(s Settings) {
	s = s.normalized()
	p.mu.Lock()
	p.settings = s
	p.mu.Unlock()
	p.log.Info().Int("fps", s.FPS).Int("quality", s.Quality).Msg("capture settings updated")
}

func (p *Pipeline) current() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// Run loops until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	for ctx.Err() == nil {
		start := time.Now()
		settings := p.current()
		p.cycle(settings)

		interval := time.Second / time.Duration(settings.FPS)
		if d := interval - time.Since(start); d > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d):
			}
		}
	}
}

func (p *Pipeline) cycle(settings Settings) {
	img, err := Grab(p.display)
	if err != nil {
		// Capture can fail transiently on display changes.
		p.log.Debug().Err(err).Msg("capture failed")
		return
	}

	prev := p.prev
	p.prev = img
	if prev != nil && p.threshold > 0 && MeanDiff(prev, img) <= p.threshold {
		return
	}

	frame, err := EncodeJPEG(img, settings.Quality)
	if err != nil {
		p.log.Warn().Err(err).Msg("encode failed")
		return
	}
	p.emit(frame)
}

// Grab captures one frame of the given display, clamping an out-of-range
// index to the primary display.
func Grab(display int) (*image.RGBA, error) {
	if n := screenshot.NumActiveDisplays(); display < 0 || display >= n {
		display = 0
	}
	return screenshot.CaptureRect(screenshot.GetDisplayBounds(display))
}

// EncodeJPEG encodes a frame at the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MeanDiff is the mean absolute per-byte pixel difference between two
// frames. Mismatched dimensions count as maximally different.
func MeanDiff(a, b *image.RGBA) float64 {
	if a == nil || b == nil || len(a.Pix) != len(b.Pix) || len(a.Pix) == 0 {
		return 255
	}
	var sum uint64
	for i := range a.Pix {
		d := int(a.Pix[i]) - int(b.Pix[i])
		if d < 0 {
			d = -d
		}
		sum += uint64(d)
	}
	return float64(sum) / float64(len(a.Pix))
}
