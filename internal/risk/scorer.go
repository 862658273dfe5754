// Package risk scores learner registrations for automation and bot risk.
package risk

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// SuspectThreshold is the score at or above which a registration is treated as suspect.
const SuspectThreshold = 0.5

const shortNameLength = 5

var (
	genericUsernamePattern = regexp.MustCompile(`^(user|test|bot|admin)\d+$`)
	suspiciousDomains      = []string{"tempmail", "throwaway", "guerrillamail", "10minute", "trash", "fake"}
)

// Reasons attached to fired indicators, in feature declaration order.
const (
	ReasonGenericUsername = "Generic username pattern detected"
	ReasonSuspiciousEmail = "Suspicious email domain"
	ReasonShortName       = "Very short name (possible bot)"
	ReasonImplausibleAge  = "Unrealistic age provided"
)

// Source names the path that produced a score.
type Source string

const (
	SourceRules      Source = "rules"
	SourceClassifier Source = "classifier"
)

// Registration carries the raw registration fields the features are derived from.
type Registration struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Age       *int
}

// Features is the registration feature vector.
type Features struct {
	GenericUsername       bool `json:"generic_username"`
	SuspiciousEmailDomain bool `json:"suspicious_email_domain"`
	NameLength            int  `json:"name_length"`
	ImplausibleAge        bool `json:"implausible_age"`
}

// Extract derives features from a registration. An absent or zero age is not flagged.
func Extract(reg Registration) Features {
	email := strings.ToLower(reg.Email)
	suspicious := false
	for _, domain := range suspiciousDomains {
		if strings.Contains(email, domain) {
			suspicious = true
			break
		}
	}

	implausible := false
	if reg.Age != nil && *reg.Age != 0 {
		implausible = *reg.Age < 10 || *reg.Age > 100
	}

	return Features{
		GenericUsername:       genericUsernamePattern.MatchString(strings.ToLower(reg.Username)),
		SuspiciousEmailDomain: suspicious,
		NameLength:            len([]rune(reg.FirstName)) + len([]rune(reg.LastName)),
		ImplausibleAge:        implausible,
	}
}

// Vector returns the raw feature order the classifier is trained on.
func (f Features) Vector() []float64 {
	return []float64{boolValue(f.GenericUsername), boolValue(f.SuspiciousEmailDomain), float64(f.NameLength), boolValue(f.ImplausibleAge)}
}

type indicator struct {
	fired  bool
	reason string
}

func (f Features) indicators() []indicator {
	return []indicator{
		{fired: f.GenericUsername, reason: ReasonGenericUsername},
		{fired: f.SuspiciousEmailDomain, reason: ReasonSuspiciousEmail},
		{fired: f.NameLength < shortNameLength, reason: ReasonShortName},
		{fired: f.ImplausibleAge, reason: ReasonImplausibleAge},
	}
}

// Assessment is the immutable result of scoring one registration.
type Assessment struct {
	Features Features `json:"features"`
	Score    float64  `json:"score"`
	Suspect  bool     `json:"suspect"`
	Reasons  []string `json:"reasons"`
	Source   Source   `json:"source"`
}

// Prediction is a classifier's verdict for one feature vector.
type Prediction struct {
	Class       int
	Probability float64
}

// Classifier predicts whether a feature vector belongs to an automated registration.
type Classifier interface {
	Predict(vector []float64) (Prediction, error)
}

// ClassifierSource hands out the current classifier, or nil when none is configured.
type ClassifierSource interface {
	Classifier() Classifier
}

// Scorer computes assessments, preferring the classifier and falling back to the rule mean.
type Scorer struct {
	source ClassifierSource
}

// NewScorer builds a scorer. A nil source always uses the rule path.
func NewScorer(source ClassifierSource) *Scorer {
	return &Scorer{source: source}
}

// Score never fails: classifier problems fall back to the rule-based mean.
func (s *Scorer) Score(features Features) Assessment {
	indicators := features.indicators()
	reasons := make([]string, 0, len(indicators))
	var sum float64
	for _, ind := range indicators {
		if ind.fired {
			sum++
			reasons = append(reasons, ind.reason)
		}
	}

	score := sum / float64(len(indicators))
	assessment := Assessment{
		Features: features,
		Score:    score,
		Suspect:  score >= SuspectThreshold,
		Reasons:  reasons,
		Source:   SourceRules,
	}

	if s == nil || s.source == nil {
		return assessment
	}
	classifier := s.source.Classifier()
	if classifier == nil {
		return assessment
	}

	prediction, err := safePredict(classifier, features.Vector())
	if err != nil {
		return assessment
	}

	assessment.Score = math.Round(prediction.Probability*100) / 100
	assessment.Suspect = prediction.Class == 1
	assessment.Source = SourceClassifier
	return assessment
}

func safePredict(classifier Classifier, vector []float64) (prediction Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panicked: %v", r)
		}
	}()

	prediction, err = classifier.Predict(vector)
	if err != nil {
		return Prediction{}, err
	}
	if math.IsNaN(prediction.Probability) || prediction.Probability < 0 || prediction.Probability > 1 {
		return Prediction{}, fmt.Errorf("classifier probability out of range: %v", prediction.Probability)
	}
	return prediction, nil
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
