package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Advisor is the composition root for the client: it holds the remote client,
// local storage, and a session-keyed container of chat sessions. There is no
// process-wide singleton; callers create one Advisor per signed-in user and
// tear it down with Reset on logout.
type Advisor struct {
	client  *Client
	storage Storage
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*ChatSession
}

// NewAdvisor constructs an Advisor with the given remote client and snapshot
// storage. storage may be nil when local persistence is not wanted.
func NewAdvisor(client *Client, storage Storage) *Advisor {
	return &Advisor{
		client:   client,
		storage:  storage,
		logger:   slog.Default(),
		sessions: make(map[string]*ChatSession),
	}
}

func (a *Advisor) SetLogger(logger *slog.Logger) {
	a.logger = logger
}

func (a *Advisor) Client() *Client {
	return a.client
}

func (a *Advisor) Storage() Storage {
	return a.storage
}

// NewChatSession creates a fresh remote session and its local transcript.
func (a *Advisor) NewChatSession(ctx context.Context) (*ChatSession, error) {
	id, err := a.client.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	sess := NewChatSession(id, a.client, nil)
	sess.SetLogger(a.logger)

	a.mu.Lock()
	a.sessions[id] = sess
	a.mu.Unlock()

	a.logger.Info("Chat session created", "sessionID", id)
	return sess, nil
}

// OpenChatSession mounts an existing session: history is fetched fresh from
// the remote store and seeds a new transcript. Re-opening replaces any
// previous local transcript for the id; the remote store is the durable
// source of truth.
func (a *Advisor) OpenChatSession(ctx context.Context, sessionID string) (*ChatSession, error) {
	events, err := a.client.SessionEvents(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}
	sess := NewChatSession(sessionID, a.client, TurnsFromEvents(events))
	sess.SetLogger(a.logger)

	a.mu.Lock()
	if prev, ok := a.sessions[sessionID]; ok {
		prev.Close()
	}
	a.sessions[sessionID] = sess
	a.mu.Unlock()

	return sess, nil
}

// ChatSession returns the mounted session for id, if any.
func (a *Advisor) ChatSession(sessionID string) (*ChatSession, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sess, ok := a.sessions[sessionID]
	return sess, ok
}

// DeleteSession removes the session remotely and locally. It does not wait
// for an in-flight stream; a stream that completes afterwards publishes into
// a closed-off transcript nobody renders.
func (a *Advisor) DeleteSession(ctx context.Context, sessionID string) error {
	if err := a.client.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	a.mu.Lock()
	if sess, ok := a.sessions[sessionID]; ok {
		sess.Close()
		delete(a.sessions, sessionID)
	}
	a.mu.Unlock()
	a.logger.Info("Chat session deleted", "sessionID", sessionID)
	return nil
}

// Reset tears down every mounted session, for logout or account switch.
func (a *Advisor) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, sess := range a.sessions {
		sess.Close()
		delete(a.sessions, id)
	}
}
