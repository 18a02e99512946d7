// Package local implements [audio.Player] on the machine's default output
// device using the beep speaker. Clip position is derived from the decoder's
// sample counter, which gives the highlight scheduler a sample-accurate
// audio clock.
package local

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"

	"github.com/sversen/novella/pkg/audio"
)

// Compile-time interface check.
var _ audio.Player = (*Player)(nil)

// speakerBufferLen is the device buffer length. A tenth of a second keeps
// latency low enough that the prediction offset stays meaningful.
const speakerBufferLen = time.Second / 10

// Player plays clips through the default output device. The speaker is
// initialised lazily on the first Play with that clip's sample rate; later
// clips with a different rate are resampled.
type Player struct {
	mu         sync.Mutex
	sampleRate beep.SampleRate
}

// NewPlayer returns an uninitialised Player. The audio device is not touched
// until the first Play call.
func NewPlayer() *Player {
	return &Player{}
}

// Play implements [audio.Player.Play].
func (p *Player) Play(_ context.Context, clip audio.Clip) (audio.Session, error) {
	streamer, format, err := decode(clip)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.sampleRate == 0 {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(speakerBufferLen)); err != nil {
			p.mu.Unlock()
			return nil, fmt.Errorf("audio: init speaker: %w", err)
		}
		p.sampleRate = format.SampleRate
	}
	deviceRate := p.sampleRate
	p.mu.Unlock()

	s := &session{
		streamer: streamer,
		format:   format,
		done:     make(chan struct{}),
	}

	var out beep.Streamer = streamer
	if format.SampleRate != deviceRate {
		out = beep.Resample(4, format.SampleRate, deviceRate, streamer)
	}

	s.ctrl = &beep.Ctrl{Streamer: beep.Seq(out, beep.Callback(s.finish))}
	speaker.Play(s.ctrl)
	return s, nil
}

// decode picks a decoder from the clip's MIME type.
func decode(clip audio.Clip) (beep.StreamSeekCloser, beep.Format, error) {
	r := io.NopCloser(bytes.NewReader(clip.Data))
	switch clip.MIMEType {
	case "audio/mpeg", "audio/mp3":
		return mp3.Decode(r)
	case "audio/wav", "audio/x-wav":
		return wav.Decode(r)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %q", audio.ErrUnsupportedFormat, clip.MIMEType)
	}
}

// session is a live playback of one clip.
type session struct {
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl

	once sync.Once
	done chan struct{}
}

// finish closes the decoder and marks the session complete. Called from the
// speaker goroutine when the streamer drains, and from Stop.
func (s *session) finish() {
	s.once.Do(func() {
		_ = s.streamer.Close()
		close(s.done)
	})
}

// Position implements [audio.Session.Position].
func (s *session) Position() time.Duration {
	speaker.Lock()
	pos := s.streamer.Position()
	speaker.Unlock()
	return s.format.SampleRate.D(pos)
}

// Duration implements [audio.Session.Duration].
func (s *session) Duration() time.Duration {
	speaker.Lock()
	n := s.streamer.Len()
	speaker.Unlock()
	return s.format.SampleRate.D(n)
}

// Done implements [audio.Session.Done].
func (s *session) Done() <-chan struct{} {
	return s.done
}

// Stop implements [audio.Session.Stop]. It detaches the streamer from the
// speaker before closing the decoder so the device never reads freed state.
func (s *session) Stop() {
	speaker.Lock()
	s.ctrl.Streamer = nil
	speaker.Unlock()
	s.finish()
}
