package advisor

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The session endpoints run without a model, so they get exercised against
// the real Client.
func TestLocalEngineSessionLifecycle(t *testing.T) {
	engine := NewLocalEngine(nil)
	srv := httptest.NewServer(engine.Handler())
	defer srv.Close()

	client := NewClient(&Config{
		EngineURL:    srv.URL,
		FunctionsURL: srv.URL,
		SessionsURL:  srv.URL,
		Timeout:      5 * time.Second,
	})

	ctx := context.Background()
	id, err := client.CreateSession(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	events, err := client.SessionEvents(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, events)

	engine.appendEvent(id, "user", "質問")
	engine.appendEvent(id, "総合アドバイザー", "回答")

	events, err = client.SessionEvents(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "user", events[0].Author)
	assert.Equal(t, "質問", events[0].Text())
	assert.Greater(t, events[1].Timestamp, float64(0))

	require.NoError(t, client.DeleteSession(ctx, id))
	_, err = client.SessionEvents(ctx, id)
	assert.Error(t, err)
}

func TestLocalEngineUnknownSession(t *testing.T) {
	engine := NewLocalEngine(nil)
	srv := httptest.NewServer(engine.Handler())
	defer srv.Close()

	client := NewClient(&Config{SessionsURL: srv.URL, Timeout: 5 * time.Second})
	_, err := client.SessionEvents(context.Background(), "missing")
	assert.Error(t, err)
	assert.Error(t, client.DeleteSession(context.Background(), "missing"))
}
