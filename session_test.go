package advisor

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptOpener replays a canned stream body, or fails to open.
type scriptOpener struct {
	body    string
	openErr error

	mu       sync.Mutex
	messages []string
}

func (o *scriptOpener) OpenStream(ctx context.Context, sessionID, message string) (io.ReadCloser, error) {
	o.mu.Lock()
	o.messages = append(o.messages, message)
	o.mu.Unlock()
	if o.openErr != nil {
		return nil, o.openErr
	}
	return io.NopCloser(strings.NewReader(o.body)), nil
}

const scriptedAnswer = "data: {\"type\": \"agent_start\", \"agent_name\": \"総合アドバイザー\"}\n" +
	"data: {\"type\": \"chunk\", \"content\": \"バランスの良い食事です\"}\n" +
	"data: {\"type\": \"agent_complete\", \"agent_name\": \"総合アドバイザー\"}\n" +
	"data: {\"type\": \"stream_end\"}\n"

func TestSendMessageComposesTranscript(t *testing.T) {
	opener := &scriptOpener{body: scriptedAnswer}
	sess := NewChatSession("s1", opener, nil)
	defer sess.Close()

	require.NoError(t, sess.SendMessage(context.Background(), "夕食について相談です"))

	tr := sess.Transcript()
	require.Len(t, tr.Turns, 2)
	assert.Equal(t, RoleUser, tr.Turns[0].Role)
	assert.Equal(t, "夕食について相談です", tr.Turns[0].Content)

	turn := tr.Turns[1]
	assert.Equal(t, RoleAssistant, turn.Role)
	assert.False(t, turn.IsStreaming)
	assert.Equal(t, "**総合アドバイザー**\n\nバランスの良い食事です", turn.Content)
}

func TestSendMessageTrimsAndRejectsEmpty(t *testing.T) {
	opener := &scriptOpener{body: scriptedAnswer}
	sess := NewChatSession("s1", opener, nil)
	defer sess.Close()

	assert.ErrorIs(t, sess.SendMessage(context.Background(), ""), ErrEmptyMessage)
	assert.ErrorIs(t, sess.SendMessage(context.Background(), "   \n\t "), ErrEmptyMessage)
	assert.Empty(t, sess.Transcript().Turns)

	require.NoError(t, sess.SendMessage(context.Background(), "  本文  "))
	assert.Equal(t, "本文", sess.Transcript().Turns[0].Content)
}

func TestSendMessageRejectsConcurrentSend(t *testing.T) {
	pr, pw := io.Pipe()
	blocking := &pipeOpener{body: pr}
	sess := NewChatSession("s1", blocking, nil)
	defer sess.Close()

	done := make(chan error, 1)
	go func() {
		done <- sess.SendMessage(context.Background(), "first")
	}()

	// Wait until the first send holds the stream slot.
	require.Eventually(t, func() bool {
		return len(sess.Transcript().Turns) == 2
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, sess.SendMessage(context.Background(), "second"), ErrStreamActive)

	io.WriteString(pw, "data: {\"type\": \"stream_end\"}\n")
	pw.Close()
	require.NoError(t, <-done)

	// The slot is free again once the stream terminated.
	opener := &scriptOpener{body: scriptedAnswer}
	sess2 := NewChatSession("s2", opener, nil)
	defer sess2.Close()
	assert.NoError(t, sess2.SendMessage(context.Background(), "third"))
}

type pipeOpener struct {
	body io.ReadCloser
}

func (o *pipeOpener) OpenStream(ctx context.Context, sessionID, message string) (io.ReadCloser, error) {
	return o.body, nil
}

func TestSendMessageOpenFailure(t *testing.T) {
	opener := &scriptOpener{openErr: errors.New("connection refused")}
	sess := NewChatSession("s1", opener, nil)
	defer sess.Close()

	err := sess.SendMessage(context.Background(), "質問")
	require.Error(t, err)

	tr := sess.Transcript()
	turn := tr.LastTurn()
	require.NotNil(t, turn)
	assert.False(t, turn.IsStreaming)
	assert.Equal(t, "エラーが発生しました。もう一度お試しください。", turn.Content)
}

func TestSendMessageStreamClosedWithoutTerminal(t *testing.T) {
	body := "data: {\"type\": \"agent_start\", \"agent_name\": \"A\"}\n" +
		"data: {\"type\": \"chunk\", \"content\": \"途中まで\"}\n"
	opener := &scriptOpener{body: body}
	sess := NewChatSession("s1", opener, nil)
	defer sess.Close()

	require.NoError(t, sess.SendMessage(context.Background(), "質問"))

	tr := sess.Transcript()
	turn := tr.LastTurn()
	assert.False(t, turn.IsStreaming)
	assert.Equal(t, "エラーが発生しました。もう一度お試しください。", turn.Content)
	assert.True(t, turn.Contributions[0].IsComplete)
}

func TestSendMessageServerErrorEvent(t *testing.T) {
	body := "data: {\"type\": \"error\", \"content\": \"エンジン内部エラー\"}\n" +
		"data: {\"type\": \"chunk\", \"content\": \"ignored\"}\n"
	opener := &scriptOpener{body: body}
	sess := NewChatSession("s1", opener, nil)
	defer sess.Close()

	require.NoError(t, sess.SendMessage(context.Background(), "質問"))
	tr := sess.Transcript()
	turn := tr.LastTurn()
	assert.Equal(t, "エンジン内部エラー", turn.Content)
	assert.False(t, turn.IsStreaming)
}

func TestSendInitialMessageFiresOnce(t *testing.T) {
	opener := &scriptOpener{body: scriptedAnswer}
	sess := NewChatSession("s1", opener, nil)
	defer sess.Close()

	require.NoError(t, sess.SendInitialMessage(context.Background(), "初回の相談"))
	assert.ErrorIs(t, sess.SendInitialMessage(context.Background(), "初回の相談"), ErrInitialMessageSent)

	opener.mu.Lock()
	defer opener.mu.Unlock()
	assert.Equal(t, []string{"初回の相談"}, opener.messages)
}

func TestSendInitialMessageLatchSurvivesFailure(t *testing.T) {
	opener := &scriptOpener{openErr: errors.New("down")}
	sess := NewChatSession("s1", opener, nil)
	defer sess.Close()

	require.Error(t, sess.SendInitialMessage(context.Background(), "初回"))
	assert.ErrorIs(t, sess.SendInitialMessage(context.Background(), "初回"), ErrInitialMessageSent)
	// A regular send is still allowed after the failed initial one.
	assert.Error(t, sess.SendMessage(context.Background(), "再送"))
}

func TestUpdatesDeliverLatestSnapshot(t *testing.T) {
	opener := &scriptOpener{body: scriptedAnswer}
	sess := NewChatSession("s1", opener, nil)
	defer sess.Close()

	require.NoError(t, sess.SendMessage(context.Background(), "質問"))

	select {
	case snap := <-sess.Updates():
		turn := snap.LastTurn()
		require.NotNil(t, turn)
		assert.False(t, turn.IsStreaming, "unread snapshots conflate down to the latest state")
	default:
		t.Fatal("expected a pending snapshot")
	}
}

func TestCloseStopsPublishing(t *testing.T) {
	opener := &scriptOpener{body: scriptedAnswer}
	sess := NewChatSession("s1", opener, nil)
	sess.Close()
	sess.Close()

	assert.ErrorIs(t, sess.SendMessage(context.Background(), "質問"), ErrSessionClosed)
	_, open := <-sess.Updates()
	assert.False(t, open)
}

func TestSessionSeededFromHistory(t *testing.T) {
	seed := []ChatTurn{
		{ID: "remote_1", Role: RoleUser, Content: "前回の質問"},
		{ID: "remote_2", Role: RoleAssistant, Content: "前回の回答"},
	}
	opener := &scriptOpener{body: scriptedAnswer}
	sess := NewChatSession("s1", opener, seed)
	defer sess.Close()

	require.NoError(t, sess.SendMessage(context.Background(), "続きの質問"))
	tr := sess.Transcript()
	require.Len(t, tr.Turns, 4)
	assert.Equal(t, "前回の質問", tr.Turns[0].Content)
	assert.Equal(t, "続きの質問", tr.Turns[2].Content)
}
