// Package model defines the core domain types for happening registration.
package model

import (
	"strings"
	"time"
)

// HappeningType distinguishes company talks from other events.
type HappeningType string

const (
	HappeningTalk  HappeningType = "TALK"
	HappeningEvent HappeningType = "EVENT"
)

// Valid reports whether t is a known happening type.
func (t HappeningType) Valid() bool {
	return t == HappeningTalk || t == HappeningEvent
}

// Happening is a capacity-limited event open for registration.
type Happening struct {
	Slug                string        `json:"slug"`
	Title               string        `json:"title"`
	Type                HappeningType `json:"type"`
	RegistrationOpensAt time.Time     `json:"registrationDate"`
	HappeningStartsAt   time.Time     `json:"happeningDate"`
	OrganizerEmail      string        `json:"organizerEmail"`
	RegistrationsLink   string        `json:"-"`
	VerificationToken   string        `json:"-"`
}

// DegreeYearRange is an inclusive interval of degree years.
type DegreeYearRange struct {
	Min int `json:"minDegreeYear"`
	Max int `json:"maxDegreeYear"`
}

// Contains reports whether year falls within the range.
func (r DegreeYearRange) Contains(year int) bool {
	return year >= r.Min && year <= r.Max
}

// SpotRange is a capacity bucket within a happening, scoped to a
// degree-year interval. Spots == 0 means unlimited.
type SpotRange struct {
	Spots         int `json:"spots" validate:"gte=0"`
	MinDegreeYear int `json:"minDegreeYear" validate:"gte=1,lte=5"`
	MaxDegreeYear int `json:"maxDegreeYear" validate:"gte=1,lte=5,gtefield=MinDegreeYear"`
}

// Bounds returns the degree-year interval covered by the range.
func (s SpotRange) Bounds() DegreeYearRange {
	return DegreeYearRange{Min: s.MinDegreeYear, Max: s.MaxDegreeYear}
}

// Contains reports whether a registrant in the given degree year belongs
// to this range.
func (s SpotRange) Contains(year int) bool {
	return s.Bounds().Contains(year)
}

// Unlimited is true when the range never waitlists on capacity grounds.
func (s SpotRange) Unlimited() bool {
	return s.Spots == 0
}

// Answer is a free-form question/answer pair attached to a registration.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Registration is a registrant's claim on a happening. It is identified by
// (HappeningSlug, Email) with Email normalized to lowercase.
type Registration struct {
	HappeningSlug string    `json:"slug"`
	Email         string    `json:"email"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Degree        Degree    `json:"degree"`
	DegreeYear    int       `json:"degreeYear"`
	TermsAccepted bool      `json:"terms"`
	SubmittedAt   time.Time `json:"submitDate"`
	OnWaitList    bool      `json:"waitList"`
	Answers       []Answer  `json:"answers"`
}

// Submission is the payload a registrant sends to sign up for a happening.
type Submission struct {
	Email             string        `json:"email"`
	FirstName         string        `json:"firstName"`
	LastName          string        `json:"lastName"`
	Degree            Degree        `json:"degree"`
	DegreeYear        int           `json:"degreeYear"`
	TermsAccepted     bool          `json:"terms"`
	VerificationToken string        `json:"regVerifyToken,omitempty"`
	Answers           []Answer      `json:"answers"`
	Type              HappeningType `json:"type"`
}

// Registration builds the record to be stored for this submission.
func (s Submission) Registration(slug string, onWaitList bool) Registration {
	return Registration{
		HappeningSlug: slug,
		Email:         NormalizeEmail(s.Email),
		FirstName:     s.FirstName,
		LastName:      s.LastName,
		Degree:        s.Degree,
		DegreeYear:    s.DegreeYear,
		TermsAccepted: s.TermsAccepted,
		OnWaitList:    onWaitList,
		Answers:       s.Answers,
	}
}

// NormalizeEmail returns the canonical form used in registration identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
