package advisor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SessionEvent is one historical entry from the remote session store. The
// remote store is the durable source of truth for a session; the transcript is
// reseeded from these events whenever a session view mounts.
type SessionEvent struct {
	Name    string `json:"name"`
	Author  string `json:"author"`
	Content struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"content"`
	// Seconds since the epoch, fractional.
	Timestamp float64 `json:"timestamp"`
}

// Text joins the event's content parts in order.
func (e SessionEvent) Text() string {
	var b strings.Builder
	for _, p := range e.Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// CreateSession asks the session store for a fresh conversation id.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var out apiResponse
	if err := c.doJSON(ctx, http.MethodPost, c.cfg.SessionsURL+"/api/sessions", nil, &out); err != nil {
		return "", fmt.Errorf("session create failed: %w", err)
	}
	if !out.Success || out.SessionID == "" {
		return "", fmt.Errorf("session create rejected: %s", out.Error)
	}
	return out.SessionID, nil
}

// SessionEvents fetches the ordered history of a session.
func (c *Client) SessionEvents(ctx context.Context, sessionID string) ([]SessionEvent, error) {
	var out apiResponse
	url := fmt.Sprintf("%s/api/sessions/%s/events", c.cfg.SessionsURL, sessionID)
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, fmt.Errorf("session events fetch failed: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("session events rejected: %s", out.Error)
	}
	return out.Events, nil
}

// DeleteSession removes a session from the remote store. It does not wait for
// or depend on any in-flight stream for that session.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	var out apiResponse
	url := fmt.Sprintf("%s/api/sessions/%s", c.cfg.SessionsURL, sessionID)
	if err := c.doJSON(ctx, http.MethodDelete, url, nil, &out); err != nil {
		return fmt.Errorf("session delete failed: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("session delete rejected: %s", out.Error)
	}
	return nil
}

// TurnsFromEvents converts session store history into transcript turns.
// Unknown authors render as assistant turns, matching the original client.
func TurnsFromEvents(events []SessionEvent) []ChatTurn {
	turns := make([]ChatTurn, 0, len(events))
	for _, ev := range events {
		role := RoleAssistant
		if ev.Author == "user" {
			role = RoleUser
		}
		sec := int64(ev.Timestamp)
		nsec := int64((ev.Timestamp - float64(sec)) * float64(time.Second))
		turns = append(turns, ChatTurn{
			ID:        "remote_" + ev.Name,
			Role:      role,
			Content:   ev.Text(),
			Timestamp: time.Unix(sec, nsec),
		})
	}
	return turns
}
