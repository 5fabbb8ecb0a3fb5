package advisor

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// AllergyType classifies an allergy entry.
type AllergyType string

const (
	AllergyFood          AllergyType = "food"
	AllergyEnvironmental AllergyType = "environmental"
	AllergyMedicine      AllergyType = "medicine"
)

// ChildProfile describes one child. AgeMonths is the age in months; name and
// body measurements are optional.
type ChildProfile struct {
	ID        string    `json:"id"`
	AgeMonths int       `json:"ageMonths"`
	WeightKg  float64   `json:"weightKg,omitempty"`
	HeightCm  float64   `json:"heightCm,omitempty"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Allergy is one allergy record tied to a child.
type Allergy struct {
	ID      string      `json:"id"`
	ChildID string      `json:"childId"`
	Name    string      `json:"name"`
	Type    AllergyType `json:"type"`
}

// profileState is the serializable content of a ProfileBook.
type profileState struct {
	Children      []ChildProfile `json:"children"`
	ActiveChildID string         `json:"activeChildId,omitempty"`
	Allergies     []Allergy      `json:"allergies"`
}

// ProfileBook manages the children registered by a parent and their
// allergies. The first registered child becomes active; deleting the active
// child promotes the next one. Safe for concurrent use.
type ProfileBook struct {
	mu    sync.Mutex
	state profileState
}

func NewProfileBook() *ProfileBook {
	return &ProfileBook{}
}

// AddChild registers a child and returns its id.
func (b *ProfileBook) AddChild(p ChildProfile) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now
	b.state.Children = append(b.state.Children, p)
	if len(b.state.Children) == 1 {
		b.state.ActiveChildID = p.ID
	}
	return p.ID
}

// UpdateChild applies fn to the child with the given id.
func (b *ProfileBook) UpdateChild(childID string, fn func(*ChildProfile)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.state.Children {
		if b.state.Children[i].ID == childID {
			fn(&b.state.Children[i])
			b.state.Children[i].ID = childID
			b.state.Children[i].UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// DeleteChild removes a child along with its allergies. When the active child
// is deleted, the first remaining child becomes active.
func (b *ProfileBook) DeleteChild(childID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	children := b.state.Children[:0]
	for _, c := range b.state.Children {
		if c.ID != childID {
			children = append(children, c)
		}
	}
	b.state.Children = children

	allergies := b.state.Allergies[:0]
	for _, a := range b.state.Allergies {
		if a.ChildID != childID {
			allergies = append(allergies, a)
		}
	}
	b.state.Allergies = allergies

	if b.state.ActiveChildID == childID {
		b.state.ActiveChildID = ""
		if len(b.state.Children) > 0 {
			b.state.ActiveChildID = b.state.Children[0].ID
		}
	}
}

// SetActiveChild selects which child new records and consultations apply to.
func (b *ProfileBook) SetActiveChild(childID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range b.state.Children {
		if c.ID == childID {
			b.state.ActiveChildID = childID
			return true
		}
	}
	return false
}

// ActiveChild returns the currently selected child.
func (b *ProfileBook) ActiveChild() (ChildProfile, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range b.state.Children {
		if c.ID == b.state.ActiveChildID {
			return c, true
		}
	}
	return ChildProfile{}, false
}

// Children returns all registered children in registration order.
func (b *ProfileBook) Children() []ChildProfile {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ChildProfile, len(b.state.Children))
	copy(out, b.state.Children)
	return out
}

// AddAllergy records an allergy and returns its id.
func (b *ProfileBook) AddAllergy(a Allergy) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	a.ID = uuid.NewString()
	b.state.Allergies = append(b.state.Allergies, a)
	return a.ID
}

// RemoveAllergy deletes an allergy record by id.
func (b *ProfileBook) RemoveAllergy(allergyID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	allergies := b.state.Allergies[:0]
	for _, a := range b.state.Allergies {
		if a.ID != allergyID {
			allergies = append(allergies, a)
		}
	}
	b.state.Allergies = allergies
}

// ChildAllergies lists allergies for one child.
func (b *ProfileBook) ChildAllergies(childID string) []Allergy {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Allergy
	for _, a := range b.state.Allergies {
		if a.ChildID == childID {
			out = append(out, a)
		}
	}
	return out
}
