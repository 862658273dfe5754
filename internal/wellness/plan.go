// Package wellness builds the personal activity plan handed to a learner at registration.
package wellness

// Profile defaults used when the learner leaves a field out.
const (
	DefaultAge      = 25
	DefaultWeightKg = 65.0
	DefaultHeightCm = 170.0
	neutralBMI      = 22.0
	overweightBMI   = 25.0
)

// Activity is one planned session.
type Activity struct {
	Type            string
	Title           string
	Description     string
	DurationMinutes int
	Difficulty      string
}

// Profile is the body data the plan is derived from. Nil fields take the defaults.
type Profile struct {
	Age      *int
	WeightKg *float64
	HeightCm *float64
}

// BMI returns weight over squared height in metres, or a neutral value when
// either measurement is not positive.
func BMI(weightKg, heightCm float64) float64 {
	if weightKg <= 0 || heightCm <= 0 {
		return neutralBMI
	}
	metres := heightCm / 100
	return weightKg / (metres * metres)
}

// Plan picks the activity set for a profile by age band, then by BMI for adults under 40.
func Plan(profile Profile) []Activity {
	age := DefaultAge
	if profile.Age != nil {
		age = *profile.Age
	}
	weight, height := DefaultWeightKg, DefaultHeightCm
	if profile.WeightKg != nil {
		weight = *profile.WeightKg
	}
	if profile.HeightCm != nil {
		height = *profile.HeightCm
	}

	switch {
	case age < 18:
		return []Activity{
			{Type: "outdoor", Title: "Outdoor Play & Sports", Description: "Play cricket, football, or run outside for 60 minutes", DurationMinutes: 60, Difficulty: "Easy"},
			{Type: "yoga", Title: "Kids Yoga & Stretching", Description: "Simple yoga poses and breathing exercises", DurationMinutes: 20, Difficulty: "Easy"},
			{Type: "music", Title: "Dance to Music", Description: "Fun dancing to energetic music", DurationMinutes: 30, Difficulty: "Easy"},
		}
	case age < 40 && BMI(weight, height) > overweightBMI:
		return []Activity{
			{Type: "exercise", Title: "HIIT Cardio Workout", Description: "High-intensity training to burn calories", DurationMinutes: 30, Difficulty: "Hard"},
			{Type: "yoga", Title: "Power Yoga Flow", Description: "Dynamic yoga for weight management", DurationMinutes: 45, Difficulty: "Medium"},
		}
	case age < 40:
		return []Activity{
			{Type: "exercise", Title: "Strength Training", Description: "Build muscle and stamina", DurationMinutes: 40, Difficulty: "Medium"},
			{Type: "yoga", Title: "Vinyasa Yoga", Description: "Flowing yoga sequence for flexibility", DurationMinutes: 45, Difficulty: "Medium"},
		}
	default:
		return []Activity{
			{Type: "yoga", Title: "Gentle Hatha Yoga", Description: "Relaxing yoga for joints and flexibility", DurationMinutes: 30, Difficulty: "Easy"},
			{Type: "exercise", Title: "Brisk Walking", Description: "Cardiovascular health through walking", DurationMinutes: 40, Difficulty: "Easy"},
			{Type: "meditation", Title: "Mindfulness Meditation", Description: "Calm your mind with guided meditation", DurationMinutes: 20, Difficulty: "Easy"},
		}
	}
}
