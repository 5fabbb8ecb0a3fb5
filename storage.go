package advisor

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSnapshotNotFound is returned when no snapshot exists under a key.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Storage persists opaque state snapshots under string keys. The app keeps
// its local state (profiles, meal log) as JSON blobs; anything richer lives
// in the remote services.
type Storage interface {
	SaveSnapshot(key string, data []byte) error
	LoadSnapshot(key string) ([]byte, error)
	Close() error
}

const (
	snapshotKeyProfiles = "profiles"
	snapshotKeyMeals    = "meals"
)

// SaveState writes the profile book and meal log snapshots.
func SaveState(st Storage, profiles *ProfileBook, meals *MealLog) error {
	data, err := profiles.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to snapshot profiles: %w", err)
	}
	if err := st.SaveSnapshot(snapshotKeyProfiles, data); err != nil {
		return err
	}

	data, err = meals.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to snapshot meal log: %w", err)
	}
	return st.SaveSnapshot(snapshotKeyMeals, data)
}

// LoadState restores the profile book and meal log from storage. Missing
// snapshots leave the targets untouched; a first run has nothing saved yet.
func LoadState(st Storage, profiles *ProfileBook, meals *MealLog) error {
	data, err := st.LoadSnapshot(snapshotKeyProfiles)
	switch {
	case errors.Is(err, ErrSnapshotNotFound):
	case err != nil:
		return err
	default:
		if err := profiles.Restore(data); err != nil {
			return fmt.Errorf("failed to restore profiles: %w", err)
		}
	}

	data, err = st.LoadSnapshot(snapshotKeyMeals)
	switch {
	case errors.Is(err, ErrSnapshotNotFound):
	case err != nil:
		return err
	default:
		if err := meals.Restore(data); err != nil {
			return fmt.Errorf("failed to restore meal log: %w", err)
		}
	}
	return nil
}

// Snapshot serializes the book for persistence.
func (b *ProfileBook) Snapshot() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return json.Marshal(b.state)
}

// Restore replaces the book's content from a snapshot.
func (b *ProfileBook) Restore(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var st profileState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	// Normalize: a snapshot with no children cannot have an active child.
	if len(st.Children) == 0 {
		st.ActiveChildID = ""
	}
	b.state = st
	return nil
}

// Snapshot serializes the log for persistence.
func (l *MealLog) Snapshot() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return json.Marshal(l.state)
}

// Restore replaces the log's content from a snapshot.
func (l *MealLog) Restore(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var st mealState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if st.DailyMeals == nil {
		st.DailyMeals = make(map[string]DailyMeal)
	}
	l.state = st
	return nil
}
