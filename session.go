// Package advisor provides the ChatSession struct for per-conversation state,
// along with methods for sending user messages and consuming agent streams.
package advisor

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

// StreamOpener opens the advice stream for one user message. Implemented by
// Client; tests substitute their own.
type StreamOpener interface {
	OpenStream(ctx context.Context, sessionID, message string) (io.ReadCloser, error)
}

// ChatSession owns the transcript of one remote conversation and the
// lifecycle of its streams. At most one stream is in flight per session;
// different sessions are fully independent.
//
// Snapshots of the transcript are published after every applied event through
// a conflating channel: a consumer that stops reading simply misses
// intermediate states, it never blocks the network read.
type ChatSession struct {
	id     string
	opener StreamOpener
	logger *slog.Logger

	mu         sync.Mutex
	transcript Transcript
	closed     bool

	streaming   atomic.Bool
	initialSent atomic.Bool
	closeOnce   sync.Once

	updates chan Transcript
}

// NewChatSession constructs a session around an existing remote session id.
// seed is the history fetched from the session store, oldest first.
func NewChatSession(id string, opener StreamOpener, seed []ChatTurn) *ChatSession {
	return &ChatSession{
		id:         id,
		opener:     opener,
		logger:     slog.Default(),
		transcript: Transcript{Turns: seed},
		updates:    make(chan Transcript, 1),
	}
}

func (s *ChatSession) ID() string {
	return s.id
}

func (s *ChatSession) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Transcript returns a copy of the current transcript.
func (s *ChatSession) Transcript() Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Clone()
}

// Updates delivers transcript snapshots as streaming progresses. Only the
// most recent snapshot is retained; slow consumers see the latest state.
func (s *ChatSession) Updates() <-chan Transcript {
	return s.updates
}

// Close stops snapshot publishing. It does not abort an in-flight network
// read; a stream that finishes after Close is simply not published.
func (s *ChatSession) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.updates)
	})
}

// SendInitialMessage sends the pending consultation message exactly once for
// the lifetime of this session instance. Re-invocations, however rapid, are
// rejected: the latch is set before any stream work begins and never reset.
func (s *ChatSession) SendInitialMessage(ctx context.Context, text string) error {
	if !s.initialSent.CompareAndSwap(false, true) {
		s.logger.Debug("Initial message already sent, skipping", "sessionID", s.id)
		return ErrInitialMessageSent
	}
	return s.SendMessage(ctx, text)
}

// SendMessage appends a user turn and a streaming assistant turn, then drives
// the stream to completion: decode, reduce, publish per event. It blocks until
// the assistant turn terminates; run it in a goroutine and watch Updates for
// live progress. The caller must sanitize and validate text beforehand.
//
// Every path, including transport failures and streams that close without a
// terminal event, leaves the assistant turn with IsStreaming=false.
func (s *ChatSession) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		s.logger.Debug("Rejecting empty message", "sessionID", s.id)
		return ErrEmptyMessage
	}
	if !s.streaming.CompareAndSwap(false, true) {
		s.logger.Debug("Rejecting concurrent send", "sessionID", s.id)
		return ErrStreamActive
	}
	defer s.streaming.Store(false)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.transcript.Turns = append(s.transcript.Turns, NewUserTurn(text))
	s.transcript.Turns = append(s.transcript.Turns, NewAssistantTurn())
	s.publishLocked()
	s.mu.Unlock()

	return s.consume(ctx, text)
}

func (s *ChatSession) consume(ctx context.Context, text string) error {
	body, err := s.opener.OpenStream(ctx, s.id, text)
	if err != nil {
		s.logger.Error("Stream open failed", "sessionID", s.id, "error", err)
		s.apply(StreamEvent{Type: EventError, Content: errConnectivityText})
		return err
	}
	defer body.Close()

	decoder := NewFrameDecoder()
	decoder.SetLogger(s.logger)

	terminal := false
	buf := make([]byte, 4096)
	for !terminal {
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, ev := range decoder.Feed(string(buf[:n])) {
				s.apply(ev)
				if ev.IsTerminal() {
					terminal = true
					break
				}
			}
		}
		if readErr != nil {
			if !terminal {
				for _, ev := range decoder.Flush() {
					s.apply(ev)
					if ev.IsTerminal() {
						terminal = true
						break
					}
				}
			}
			if readErr != io.EOF && !terminal {
				s.logger.Error("Stream read failed", "sessionID", s.id, "error", readErr)
				s.apply(StreamEvent{Type: EventError, Content: errConnectivityText})
				return readErr
			}
			break
		}
	}

	// Connection closed without stream_end or error: synthesize the terminal
	// event so the turn never stays streaming.
	if !terminal {
		s.logger.Warn("Stream closed without terminal event", "sessionID", s.id)
		s.apply(StreamEvent{Type: EventError, Content: errConnectivityText})
	}
	return nil
}

// apply folds one event into the trailing assistant turn and publishes a
// snapshot.
func (s *ChatSession) apply(ev StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turn := s.transcript.LastTurn()
	if turn == nil || turn.Role != RoleAssistant {
		return
	}
	turn.Apply(ev)
	s.publishLocked()
}

// publishLocked offers the latest snapshot without blocking, replacing any
// unread one. Callers hold s.mu.
func (s *ChatSession) publishLocked() {
	if s.closed {
		return
	}
	snap := s.transcript.Clone()
	select {
	case s.updates <- snap:
	default:
		select {
		case <-s.updates:
		default:
		}
		select {
		case s.updates <- snap:
		default:
		}
	}
}
