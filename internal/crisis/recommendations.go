package crisis

import "github.com/noah-isme/mindcare-api/internal/models"

// Activity is a recommended wellbeing activity with its completion bonus.
type Activity struct {
	Type          string `json:"activity_type"`
	Title         string `json:"title"`
	ReferenceLink string `json:"reference_link"`
	BonusPoints   int    `json:"bonus_points"`
}

var (
	urgentActivities = []Activity{
		{Type: "breathing", Title: "5-Minute Emergency Calm Down", ReferenceLink: "https://www.youtube.com/embed/tybOi4hjZFQ", BonusPoints: 20},
		{Type: "meditation", Title: "Guided Meditation for Anxiety", ReferenceLink: "https://www.youtube.com/embed/O-6f5wQXSu8", BonusPoints: 25},
	}
	moderateActivities = []Activity{
		{Type: "yoga", Title: "Yoga for Stress Relief", ReferenceLink: "https://www.youtube.com/embed/COp7BR_Dvps", BonusPoints: 15},
		{Type: "music", Title: "Calming Music - Reduce Anxiety", ReferenceLink: "https://www.youtube.com/embed/1ZYbU82GVz4", BonusPoints: 10},
	}
	mildActivities = []Activity{
		{Type: "exercise", Title: "Quick Mood Booster Exercise", ReferenceLink: "https://www.youtube.com/embed/UBMk30rjy0o", BonusPoints: 10},
		{Type: "breathing", Title: "Box Breathing Technique", ReferenceLink: "https://www.youtube.com/embed/tEmt1Znux58", BonusPoints: 10},
	}
)

// Recommendations returns the activity pair for a severity. Unknown severities get the mild pair.
func Recommendations(severity models.Severity) []Activity {
	var source []Activity
	switch severity {
	case models.SeverityCritical, models.SeverityHigh:
		source = urgentActivities
	case models.SeverityMedium:
		source = moderateActivities
	default:
		source = mildActivities
	}
	return append([]Activity(nil), source...)
}
