package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/sversen/novella/internal/playback"
)

// command is one inbound message on the session socket.
type command struct {
	Type   string `json:"type"`
	Scene  string `json:"scene,omitempty"`
	Choice string `json:"choice,omitempty"`
}

// event is one outbound message on the session socket.
type event struct {
	Type      string        `json:"type"`
	State     *statePayload `json:"state,omitempty"`
	LineIndex int           `json:"line,omitempty"`
	WordIndex int           `json:"word,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// statePayload is the wire form of a playback snapshot.
type statePayload struct {
	State       string          `json:"state"`
	SceneID     string          `json:"scene"`
	BeatIndex   int             `json:"beat"`
	LineIndex   int             `json:"line"`
	Lines       []linePayload   `json:"lines"`
	Choices     []choicePayload `json:"choices,omitempty"`
	AudioSource string          `json:"audio_source,omitempty"`
	AudioError  string          `json:"audio_error,omitempty"`
	WordIndex   int             `json:"word"`
	Locked      bool            `json:"locked"`
}

type linePayload struct {
	ID      string `json:"id"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Spoken  bool   `json:"spoken"`
}

type choicePayload struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func toStatePayload(snap playback.Snapshot) *statePayload {
	lines := make([]linePayload, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		lines = append(lines, linePayload{
			ID:      l.ID,
			Speaker: l.Speaker,
			Text:    l.Text,
			Spoken:  l.IsSpoken,
		})
	}
	choices := make([]choicePayload, 0, len(snap.Choices))
	for _, ch := range snap.Choices {
		choices = append(choices, choicePayload{ID: ch.ID, Label: ch.Label})
	}
	return &statePayload{
		State:       snap.State.String(),
		SceneID:     snap.SceneID,
		BeatIndex:   snap.BeatIndex,
		LineIndex:   snap.LineIndex,
		Lines:       lines,
		Choices:     choices,
		AudioSource: string(snap.AudioSource),
		AudioError:  snap.AudioError,
		WordIndex:   snap.WordIndex,
		Locked:      snap.Locked,
	}
}

// session owns one WebSocket connection and the controller behind it.
type session struct {
	id     string
	conn   *websocket.Conn
	ctrl   *playback.Controller
	logger *slog.Logger

	events chan event
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// handleSession upgrades the connection and runs one playback session on it.
// Each socket gets its own controller; closing the socket tears it down.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.cfg.Logger.Warn("session upgrade failed", "err", err)
		return
	}

	ctx := r.Context()
	s.cfg.Metrics.ActiveSessions.Add(ctx, 1)
	defer s.cfg.Metrics.ActiveSessions.Add(ctx, -1)

	sess := &session{
		id:     uuid.NewString(),
		conn:   conn,
		events: make(chan event, 256),
		done:   make(chan struct{}),
	}
	sess.logger = s.cfg.Logger.With("session", sess.id)
	sess.ctrl = s.cfg.NewController(Hooks{
		OnState:     sess.pushState,
		OnHighlight: sess.pushHighlight,
	})

	sess.logger.Info("session opened")
	sess.run(ctx)
	sess.logger.Info("session closed")
}

// run drives the session until the client disconnects or ctx ends.
func (s *session) run(ctx context.Context) {
	defer s.close()

	s.wg.Add(1)
	go s.writeLoop(ctx)

	s.readLoop(ctx)
}

// close tears the session down exactly once.
func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.ctrl.Close()
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
}

// pushState queues a state event. Events are dropped when the client cannot
// keep up; snapshots are full replacements, so a later one supersedes it.
func (s *session) pushState(snap playback.Snapshot) {
	s.push(event{Type: "state", State: toStatePayload(snap)})
}

// pushHighlight queues a word-boundary event. Highlight frames are lossy.
func (s *session) pushHighlight(lineIndex, wordIndex int) {
	s.push(event{Type: "highlight", LineIndex: lineIndex, WordIndex: wordIndex})
}

func (s *session) push(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	default:
		s.logger.Warn("event dropped, client too slow", "type", ev.Type)
	}
}

// writeLoop serialises queued events onto the socket.
func (s *session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case ev := <-s.events:
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("marshal event", "err", err)
				continue
			}
			if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// readLoop receives commands from the client and dispatches them. Command
// failures are reported as error events, not socket closure; the renderer
// stays connected and may retry.
func (s *session) readLoop(ctx context.Context) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			return
		}

		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.push(event{Type: "error", Error: "malformed command"})
			continue
		}

		if err := s.dispatch(ctx, cmd); err != nil {
			s.logger.Debug("command rejected", "type", cmd.Type, "err", err)
			s.push(event{Type: "error", Error: err.Error()})
		}
	}
}

// dispatch maps one command onto the controller.
func (s *session) dispatch(ctx context.Context, cmd command) error {
	switch cmd.Type {
	case "load":
		return s.ctrl.LoadScene(ctx, cmd.Scene)
	case "play":
		return s.ctrl.PlayLine(ctx)
	case "advance":
		return s.ctrl.Advance(ctx)
	case "skip":
		return s.ctrl.Skip(ctx)
	case "choose":
		return s.ctrl.Choose(ctx, cmd.Choice)
	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
}
