package wellness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func titles(activities []Activity) []string {
	out := make([]string, 0, len(activities))
	for _, activity := range activities {
		out = append(out, activity.Title)
	}
	return out
}

func TestPlanByAgeBand(t *testing.T) {
	teen := Plan(Profile{Age: intPtr(15)})
	require.Len(t, teen, 3)
	require.Equal(t, "outdoor", teen[0].Type)
	require.Equal(t, 60, teen[0].DurationMinutes)

	senior := Plan(Profile{Age: intPtr(52), WeightKg: floatPtr(110), HeightCm: floatPtr(170)})
	require.Equal(t, []string{"Gentle Hatha Yoga", "Brisk Walking", "Mindfulness Meditation"}, titles(senior))
}

func TestPlanAdultsSplitOnBMI(t *testing.T) {
	heavy := Plan(Profile{Age: intPtr(30), WeightKg: floatPtr(90), HeightCm: floatPtr(170)})
	require.Equal(t, []string{"HIIT Cardio Workout", "Power Yoga Flow"}, titles(heavy))
	require.Equal(t, "Hard", heavy[0].Difficulty)

	fit := Plan(Profile{Age: intPtr(30), WeightKg: floatPtr(65), HeightCm: floatPtr(170)})
	require.Equal(t, []string{"Strength Training", "Vinyasa Yoga"}, titles(fit))
}

func TestPlanDefaultsMissingProfile(t *testing.T) {
	require.Equal(t, []string{"Strength Training", "Vinyasa Yoga"}, titles(Plan(Profile{})))
}

func TestBMI(t *testing.T) {
	require.InDelta(t, 22.49, BMI(65, 170), 0.01)
	require.Equal(t, neutralBMI, BMI(0, 170))
	require.Equal(t, neutralBMI, BMI(70, -1))
}
