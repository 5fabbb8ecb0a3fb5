package advisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMealLogHistory(t *testing.T) {
	log := NewMealLog()

	older := log.AddRecord(MealRecord{
		ChildID: "c1",
		Date:    time.Now().Add(-time.Hour),
		Type:    MealBreakfast,
		Foods:   []FoodItem{{Name: "食パン"}},
	})
	newer := log.AddRecord(MealRecord{
		ChildID: "c1",
		Date:    time.Now(),
		Type:    MealLunch,
		Foods:   []FoodItem{{Name: "うどん"}},
	})
	log.AddRecord(MealRecord{ChildID: "c2", Type: MealDinner})

	history := log.History("c1")
	require.Len(t, history, 2)
	assert.Equal(t, newer, history[0].ID, "newest first")
	assert.Equal(t, older, history[1].ID)
}

func TestMealLogUpdateAndDelete(t *testing.T) {
	log := NewMealLog()
	id := log.AddRecord(MealRecord{ChildID: "c1", Type: MealSnack})

	ok := log.UpdateRecord(id, func(r *MealRecord) {
		r.Notes = "完食"
		r.ID = "should not stick"
	})
	require.True(t, ok)
	assert.Equal(t, "完食", log.History("c1")[0].Notes)
	assert.Equal(t, id, log.History("c1")[0].ID)

	assert.False(t, log.UpdateRecord("missing", func(*MealRecord) {}))

	log.DeleteRecord(id)
	assert.Empty(t, log.History("c1"))
}

func TestDailyMealSheet(t *testing.T) {
	log := NewMealLog()

	daily := log.DailyMeal("c1")
	assert.Equal(t, "c1", daily.ChildID)
	assert.Empty(t, daily.Breakfast)

	log.AddFood("c1", MealBreakfast, FoodItem{Name: "ヨーグルト"})
	log.AddFood("c1", MealLunch, FoodItem{Name: "うどん"})
	log.AddFood("c1", MealLunch, FoodItem{Name: "にんじん"})
	log.SetSpecialNotes("c1", "午後は機嫌が良かった")

	daily = log.DailyMeal("c1")
	assert.Len(t, daily.Breakfast, 1)
	require.Len(t, daily.Lunch, 2)
	assert.Equal(t, "午後は機嫌が良かった", daily.SpecialNotes)

	log.RemoveFood("c1", MealLunch, 0)
	daily = log.DailyMeal("c1")
	require.Len(t, daily.Lunch, 1)
	assert.Equal(t, "にんじん", daily.Lunch[0].Name)

	// Out-of-range removals are ignored.
	log.RemoveFood("c1", MealLunch, 5)
	assert.Len(t, log.DailyMeal("c1").Lunch, 1)

	log.ClearDailyMeal("c1")
	daily = log.DailyMeal("c1")
	assert.Empty(t, daily.Lunch)
	assert.Empty(t, daily.SpecialNotes)
}
