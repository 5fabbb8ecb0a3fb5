package advisor

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// dataPrefix is the framing marker the engine puts in front of every record.
const dataPrefix = "data: "

// wireRecord mirrors the JSON the engine emits. Older engine builds put the
// payload under "message" or "response" instead of "content", so all three are
// accepted and the first non-empty one wins.
type wireRecord struct {
	Type      string `json:"type"`
	AgentName string `json:"agent_name"`
	Content   string `json:"content"`
	Message   string `json:"message"`
	Response  string `json:"response"`
}

// FrameDecoder turns raw text chunks from the engine stream into StreamEvents.
// Chunks can be cut anywhere, including mid-record; the decoder carries the
// trailing partial line over to the next Feed call. A decoder serves exactly
// one stream: after Flush it stays drained and Feed returns nothing.
type FrameDecoder struct {
	carry  string
	done   bool
	logger *slog.Logger
}

// NewFrameDecoder constructs a decoder for a single stream.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{logger: slog.Default()}
}

func (d *FrameDecoder) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// Feed appends chunk to the carry-over buffer and returns every event decoded
// from the complete lines found so far. Malformed records are dropped and
// logged; a single corrupt record never ends the stream.
func (d *FrameDecoder) Feed(chunk string) []StreamEvent {
	if d.done {
		return nil
	}
	d.carry += chunk

	lines := strings.Split(d.carry, "\n")
	d.carry = lines[len(lines)-1]
	lines = lines[:len(lines)-1]

	var events []StreamEvent
	for _, line := range lines {
		if ev, ok := d.decodeLine(line); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Flush drains the decoder at end of input. A trailing fragment that still
// forms a complete record is emitted; anything else is discarded without
// surfacing an error.
func (d *FrameDecoder) Flush() []StreamEvent {
	if d.done {
		return nil
	}
	d.done = true
	line := d.carry
	d.carry = ""
	if ev, ok := d.decodeLine(line); ok {
		return []StreamEvent{ev}
	}
	return nil
}

func (d *FrameDecoder) decodeLine(line string) (StreamEvent, bool) {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return StreamEvent{}, false
	}
	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == "" {
		return StreamEvent{}, false
	}

	var rec wireRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		d.logger.Error("Dropping malformed stream record", "error", err, "line", line)
		return StreamEvent{}, false
	}

	ev := StreamEvent{
		Type:      EventType(rec.Type),
		AgentName: rec.AgentName,
		Content:   rec.Content,
	}
	if ev.Content == "" {
		if rec.Message != "" {
			ev.Content = rec.Message
		} else {
			ev.Content = rec.Response
		}
	}

	// Forward-compatible: records with a missing or unrecognized type are
	// treated as plain chunks instead of being rejected.
	switch ev.Type {
	case EventAgentStart, EventChunk, EventToken, EventAgentComplete, EventStreamEnd, EventError:
	default:
		ev.Type = EventChunk
	}
	return ev, true
}
