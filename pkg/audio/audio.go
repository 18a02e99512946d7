// Package audio defines the playback-side audio contract for novella: a
// [Player] that turns an encoded clip into a running [Session] whose live
// position drives word highlighting.
//
// The interfaces are deliberately small. The highlight scheduler only needs
// a sample-accurate position and a completion signal; everything else
// (device handling, resampling, mixing) is an implementation concern of the
// local speaker backend.
package audio

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupportedFormat is returned by Play when the clip's MIME type is not
// recognised by the player.
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

// Clip is a single encoded audio clip.
type Clip struct {
	// Data holds the encoded bytes.
	Data []byte

	// MIMEType identifies the encoding, e.g. "audio/mpeg" or "audio/wav".
	MIMEType string
}

// Session is a single in-progress playback of one clip.
//
// Position and Duration must be cheap: the highlight scheduler reads them
// once per frame. Stop must fully unwind the session — stop output, release
// any transient resource — before returning, so that a following session
// cannot overlap it.
type Session interface {
	// Position returns the current playback position.
	Position() time.Duration

	// Duration returns the total clip duration.
	Duration() time.Duration

	// Done is closed when playback finishes or the session is stopped.
	Done() <-chan struct{}

	// Stop aborts playback immediately. Safe to call more than once.
	Stop()
}

// Player starts playback sessions. Implementations must be safe for
// concurrent use, though the playback controller's single-flight guard
// means at most one session is live at a time.
type Player interface {
	// Play decodes clip and begins playback, returning the live session.
	// A decode or device failure is returned immediately; it is the
	// "media element failure" case of the playback error taxonomy.
	Play(ctx context.Context, clip Clip) (Session, error)
}
