package advisor

// EventType identifies the kind of record carried on the advice stream.
type EventType string

const (
	EventAgentStart    EventType = "agent_start"
	EventChunk         EventType = "chunk"
	EventToken         EventType = "token"
	EventAgentComplete EventType = "agent_complete"
	EventStreamEnd     EventType = "stream_end"
	EventError         EventType = "error"
)

// StreamEvent is one decoded record from the agent engine stream. Chunk and
// token events carry incremental text for whichever agent is currently
// announced; they do not name the agent themselves.
type StreamEvent struct {
	Type      EventType `json:"type"`
	AgentName string    `json:"agent_name,omitempty"`
	Content   string    `json:"content,omitempty"`
}

// IsTerminal reports whether the event ends the assistant turn.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventStreamEnd || e.Type == EventError
}
