package advisor

import (
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Role distinguishes the two sides of a chat exchange.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	// defaultAgentName labels a contribution whose agent_start arrived without a name.
	defaultAgentName = "Kids Food Advisor"
	// errFallbackText replaces an empty server-sent error message.
	errFallbackText = "エラーが発生しました"
	// errConnectivityText is shown when the transport fails before a terminal event.
	errConnectivityText = "エラーが発生しました。もう一度お試しください。"

	sectionSeparator = "\n\n---\n\n"
)

// AgentContribution is the accumulated output of one named sub-agent within a
// single assistant turn.
type AgentContribution struct {
	ID         string
	AgentName  string
	Content    string
	IsComplete bool
}

// ChatTurn is one message in a transcript. Assistant turns stream: their
// contributions fill in event by event until a terminal event flips
// IsStreaming to false and composes the final Content.
type ChatTurn struct {
	ID            string
	Role          Role
	Content       string
	Timestamp     time.Time
	IsStreaming   bool
	Contributions []AgentContribution

	// id of the contribution currently receiving chunk/token text. The wire
	// protocol names agents only at agent_start, so the reducer threads this
	// as ambient state instead of looking agents up per chunk.
	activeID string
}

func newID() string {
	id, err := gonanoid.New()
	if err != nil {
		panic(err)
	}
	return id
}

// NewUserTurn builds an immutable user turn.
func NewUserTurn(content string) ChatTurn {
	return ChatTurn{
		ID:        newID(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewAssistantTurn builds an empty assistant turn in the streaming state.
func NewAssistantTurn() ChatTurn {
	return ChatTurn{
		ID:          newID(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// Apply folds one stream event into the turn. It is deterministic given the
// turn state and the event, performs no I/O, and ignores events that do not
// fit the current state (a chunk with no announced agent is dropped, never an
// error). Events after the turn stopped streaming are ignored.
func (t *ChatTurn) Apply(ev StreamEvent) {
	if !t.IsStreaming {
		return
	}

	switch ev.Type {
	case EventAgentStart:
		name := ev.AgentName
		if name == "" {
			name = defaultAgentName
		}
		// A different agent taking over finishes the previous contribution.
		// The same agent re-announcing itself still opens a fresh entry.
		if prev := t.active(); prev != nil && prev.AgentName != name {
			prev.IsComplete = true
		}
		c := AgentContribution{ID: newID(), AgentName: name}
		t.Contributions = append(t.Contributions, c)
		t.activeID = c.ID

	case EventChunk, EventToken:
		if c := t.active(); c != nil && ev.Content != "" {
			c.Content += ev.Content
		}

	case EventAgentComplete:
		if c := t.active(); c != nil {
			c.IsComplete = true
			t.activeID = ""
		}

	case EventStreamEnd:
		t.completeAll()
		t.Content = t.composeContent()
		t.IsStreaming = false

	case EventError:
		t.completeAll()
		if ev.Content != "" {
			t.Content = ev.Content
		} else {
			t.Content = errFallbackText
		}
		t.IsStreaming = false
	}
}

func (t *ChatTurn) active() *AgentContribution {
	if t.activeID == "" {
		return nil
	}
	for i := range t.Contributions {
		if t.Contributions[i].ID == t.activeID {
			return &t.Contributions[i]
		}
	}
	return nil
}

func (t *ChatTurn) completeAll() {
	for i := range t.Contributions {
		t.Contributions[i].IsComplete = true
	}
	t.activeID = ""
}

// composeContent renders every contribution as a named section, in arrival
// order, separated by a visible rule.
func (t *ChatTurn) composeContent() string {
	sections := make([]string, 0, len(t.Contributions))
	for _, c := range t.Contributions {
		sections = append(sections, fmt.Sprintf("**%s**\n\n%s", c.AgentName, c.Content))
	}
	return strings.Join(sections, sectionSeparator)
}

// coordinatorNames are the exact agent names whose output is the authoritative
// final answer shown to the user.
var coordinatorNames = map[string]bool{
	"総合アドバイザー":           true,
	"FinalCoordinator":  true,
	"final_coordinator": true,
	"KidsFoodAdvisor":   true,
}

// isCoordinator reports whether the named agent is the designated final
// contributor for a turn.
func isCoordinator(agentName string) bool {
	if coordinatorNames[agentName] {
		return true
	}
	if strings.Contains(agentName, "総合") {
		return true
	}
	lower := strings.ToLower(agentName)
	return strings.Contains(lower, "final") || strings.Contains(lower, "coordinator")
}

// FinalContribution returns the coordinator contribution, if any. When none
// matches the rendering layer falls back to plain sequential sections.
func (t *ChatTurn) FinalContribution() (AgentContribution, bool) {
	for _, c := range t.Contributions {
		if isCoordinator(c.AgentName) {
			return c, true
		}
	}
	return AgentContribution{}, false
}

// ConsultedContributions returns every contribution that is not the
// coordinator, in arrival order. These render collapsed in the UI.
func (t *ChatTurn) ConsultedContributions() []AgentContribution {
	var out []AgentContribution
	for _, c := range t.Contributions {
		if !isCoordinator(c.AgentName) {
			out = append(out, c)
		}
	}
	return out
}

// Transcript is the ordered history of one chat session. It is append-only
// except for the trailing assistant turn while it streams.
type Transcript struct {
	Turns []ChatTurn
}

// LastTurn returns a pointer to the trailing turn, or nil for an empty
// transcript.
func (tr *Transcript) LastTurn() *ChatTurn {
	if len(tr.Turns) == 0 {
		return nil
	}
	return &tr.Turns[len(tr.Turns)-1]
}

// Clone deep-copies the transcript so snapshots can cross goroutines without
// racing the reducer.
func (tr *Transcript) Clone() Transcript {
	turns := make([]ChatTurn, len(tr.Turns))
	copy(turns, tr.Turns)
	for i := range turns {
		if len(turns[i].Contributions) > 0 {
			contribs := make([]AgentContribution, len(turns[i].Contributions))
			copy(contribs, turns[i].Contributions)
			turns[i].Contributions = contribs
		}
	}
	return Transcript{Turns: turns}
}
