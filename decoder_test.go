package advisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStream = "data: {\"type\": \"agent_start\", \"agent_name\": \"栄養スペシャリスト\"}\n" +
	"data: {\"type\": \"chunk\", \"content\": \"たんぱく質が\"}\n" +
	"data: {\"type\": \"chunk\", \"content\": \"不足しています\"}\n" +
	"data: {\"type\": \"agent_complete\", \"agent_name\": \"栄養スペシャリスト\"}\n" +
	"data: {\"type\": \"stream_end\"}\n"

func decodeAll(t *testing.T, chunks []string) []StreamEvent {
	t.Helper()
	d := NewFrameDecoder()
	var events []StreamEvent
	for _, c := range chunks {
		events = append(events, d.Feed(c)...)
	}
	events = append(events, d.Flush()...)
	return events
}

func splitEvery(s string, n int) []string {
	var out []string
	runes := []byte(s)
	for len(runes) > n {
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return append(out, string(runes))
}

func TestFrameDecoderBasicStream(t *testing.T) {
	events := decodeAll(t, []string{sampleStream})
	require.Len(t, events, 5)

	assert.Equal(t, EventAgentStart, events[0].Type)
	assert.Equal(t, "栄養スペシャリスト", events[0].AgentName)
	assert.Equal(t, EventChunk, events[1].Type)
	assert.Equal(t, "たんぱく質が", events[1].Content)
	assert.Equal(t, EventAgentComplete, events[3].Type)
	assert.Equal(t, EventStreamEnd, events[4].Type)
	assert.True(t, events[4].IsTerminal())
}

func TestFrameDecoderSplitInvariance(t *testing.T) {
	want := decodeAll(t, []string{sampleStream})
	for _, size := range []int{1, 2, 3, 7, 16, 64} {
		got := decodeAll(t, splitEvery(sampleStream, size))
		assert.Equal(t, want, got, "chunk size %d", size)
	}
}

func TestFrameDecoderMalformedRecordDropped(t *testing.T) {
	stream := "data: {\"type\": \"chunk\", \"content\": \"before\"}\n" +
		"data: {not json at all\n" +
		"data: {\"type\": \"chunk\", \"content\": \"after\"}\n"

	events := decodeAll(t, []string{stream})
	require.Len(t, events, 2)
	assert.Equal(t, "before", events[0].Content)
	assert.Equal(t, "after", events[1].Content)
}

func TestFrameDecoderIgnoresNonDataLines(t *testing.T) {
	stream := "\n" +
		": keepalive\n" +
		"event: message\n" +
		"data: {\"type\": \"chunk\", \"content\": \"x\"}\n"

	events := decodeAll(t, []string{stream})
	require.Len(t, events, 1)
	assert.Equal(t, "x", events[0].Content)
}

func TestFrameDecoderCRLF(t *testing.T) {
	events := decodeAll(t, []string{"data: {\"type\": \"chunk\", \"content\": \"x\"}\r\n"})
	require.Len(t, events, 1)
	assert.Equal(t, "x", events[0].Content)
}

func TestFrameDecoderUnknownTypeBecomesChunk(t *testing.T) {
	stream := "data: {\"type\": \"telemetry\", \"content\": \"x\"}\n" +
		"data: {\"content\": \"y\"}\n"

	events := decodeAll(t, []string{stream})
	require.Len(t, events, 2)
	assert.Equal(t, EventChunk, events[0].Type)
	assert.Equal(t, EventChunk, events[1].Type)
}

func TestFrameDecoderContentFallbacks(t *testing.T) {
	stream := "data: {\"type\": \"error\", \"message\": \"from message\"}\n" +
		"data: {\"type\": \"chunk\", \"response\": \"from response\"}\n" +
		"data: {\"type\": \"chunk\", \"content\": \"wins\", \"message\": \"loses\"}\n"

	events := decodeAll(t, []string{stream})
	require.Len(t, events, 3)
	assert.Equal(t, "from message", events[0].Content)
	assert.Equal(t, "from response", events[1].Content)
	assert.Equal(t, "wins", events[2].Content)
}

func TestFrameDecoderFlushCompletesTrailingRecord(t *testing.T) {
	d := NewFrameDecoder()
	events := d.Feed("data: {\"type\": \"stream_end\"}")
	assert.Empty(t, events)

	events = d.Flush()
	require.Len(t, events, 1)
	assert.Equal(t, EventStreamEnd, events[0].Type)
}

func TestFrameDecoderFlushDiscardsPartialRecord(t *testing.T) {
	d := NewFrameDecoder()
	d.Feed("data: {\"type\": \"chu")
	assert.Empty(t, d.Flush())
}

func TestFrameDecoderDrainedAfterFlush(t *testing.T) {
	d := NewFrameDecoder()
	d.Flush()
	assert.Empty(t, d.Feed(sampleStream))
	assert.Empty(t, d.Flush())
}
