package advisor

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MealType names one meal slot of the day.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// FoodItem is one food entry in a meal.
type FoodItem struct {
	Name     string  `json:"name"`
	Category string  `json:"category,omitempty"`
	AmountG  float64 `json:"amountG,omitempty"`
}

// NutritionSummary totals the estimated nutrients of a meal.
type NutritionSummary struct {
	TotalCalories float64 `json:"totalCalories"`
	Protein       float64 `json:"protein"`
	Carbs         float64 `json:"carbs"`
	Fat           float64 `json:"fat"`
	Fiber         float64 `json:"fiber"`
}

// MealRecord is one logged meal for a child.
type MealRecord struct {
	ID        string            `json:"id"`
	ChildID   string            `json:"childId"`
	Date      time.Time         `json:"date"`
	Type      MealType          `json:"type"`
	Foods     []FoodItem        `json:"foods"`
	ImageURL  string            `json:"imageUrl,omitempty"`
	Notes     string            `json:"notes,omitempty"`
	Nutrition *NutritionSummary `json:"nutritionSummary,omitempty"`
}

// DailyMeal is the day's editable meal sheet for one child: the three fixed
// meal slots plus free-form notes.
type DailyMeal struct {
	ChildID      string     `json:"childId"`
	Breakfast    []FoodItem `json:"breakfast"`
	Lunch        []FoodItem `json:"lunch"`
	Dinner       []FoodItem `json:"dinner"`
	SpecialNotes string     `json:"specialNotes"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func newDailyMeal(childID string) DailyMeal {
	return DailyMeal{ChildID: childID, UpdatedAt: time.Now()}
}

// mealState is the serializable content of a MealLog.
type mealState struct {
	History    []MealRecord         `json:"history"`
	DailyMeals map[string]DailyMeal `json:"dailyMeals"`
}

// MealLog stores meal history and the per-child daily meal sheets. Safe for
// concurrent use.
type MealLog struct {
	mu    sync.Mutex
	state mealState
}

func NewMealLog() *MealLog {
	return &MealLog{state: mealState{DailyMeals: make(map[string]DailyMeal)}}
}

// AddRecord logs a meal and returns the record id. Newest records come first
// in History.
func (l *MealLog) AddRecord(r MealRecord) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	r.ID = uuid.NewString()
	l.state.History = append([]MealRecord{r}, l.state.History...)
	return r.ID
}

// UpdateRecord applies fn to the record with the given id.
func (l *MealLog) UpdateRecord(recordID string, fn func(*MealRecord)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.state.History {
		if l.state.History[i].ID == recordID {
			fn(&l.state.History[i])
			l.state.History[i].ID = recordID
			return true
		}
	}
	return false
}

// DeleteRecord removes a logged meal.
func (l *MealLog) DeleteRecord(recordID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	history := l.state.History[:0]
	for _, r := range l.state.History {
		if r.ID != recordID {
			history = append(history, r)
		}
	}
	l.state.History = history
}

// History returns a child's meal records, newest first.
func (l *MealLog) History(childID string) []MealRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []MealRecord
	for _, r := range l.state.History {
		if r.ChildID == childID {
			out = append(out, r)
		}
	}
	return out
}

// DailyMeal returns the day's meal sheet for a child, creating an empty one
// on first access.
func (l *MealLog) DailyMeal(childID string) DailyMeal {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.state.DailyMeals[childID]; ok {
		return m
	}
	m := newDailyMeal(childID)
	l.state.DailyMeals[childID] = m
	return m
}

// AddFood appends a food to one of the child's meal slots.
func (l *MealLog) AddFood(childID string, meal MealType, food FoodItem) {
	l.updateDaily(childID, func(m *DailyMeal) {
		switch meal {
		case MealBreakfast:
			m.Breakfast = append(m.Breakfast, food)
		case MealLunch:
			m.Lunch = append(m.Lunch, food)
		case MealDinner:
			m.Dinner = append(m.Dinner, food)
		}
	})
}

// RemoveFood deletes the food at index from one of the child's meal slots.
func (l *MealLog) RemoveFood(childID string, meal MealType, index int) {
	l.updateDaily(childID, func(m *DailyMeal) {
		switch meal {
		case MealBreakfast:
			m.Breakfast = removeAt(m.Breakfast, index)
		case MealLunch:
			m.Lunch = removeAt(m.Lunch, index)
		case MealDinner:
			m.Dinner = removeAt(m.Dinner, index)
		}
	})
}

// SetSpecialNotes replaces the free-form notes on the child's daily sheet.
func (l *MealLog) SetSpecialNotes(childID, notes string) {
	l.updateDaily(childID, func(m *DailyMeal) {
		m.SpecialNotes = notes
	})
}

// ClearDailyMeal resets the child's daily sheet.
func (l *MealLog) ClearDailyMeal(childID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.DailyMeals[childID] = newDailyMeal(childID)
}

func (l *MealLog) updateDaily(childID string, fn func(*DailyMeal)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.state.DailyMeals[childID]
	if !ok {
		m = newDailyMeal(childID)
	}
	fn(&m)
	m.UpdatedAt = time.Now()
	l.state.DailyMeals[childID] = m
}

func removeAt(items []FoodItem, index int) []FoodItem {
	if index < 0 || index >= len(items) {
		return items
	}
	return append(items[:index], items[index+1:]...)
}
