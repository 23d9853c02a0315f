package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Shivanand-hulikatti/happening-registration/internal/model"
)

func validSubmission() model.Submission {
	return model.Submission{
		Email:         "Test@Student.uib.no",
		FirstName:     "Ola",
		LastName:      "Nordmann",
		Degree:        model.DegreeDTEK,
		DegreeYear:    2,
		TermsAccepted: true,
		Type:          model.HappeningTalk,
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		description string
		mutate      func(s *model.Submission)
		expected    model.Code
	}{
		{"valid submission", func(s *model.Submission) {}, model.Eligible},
		{"email without at", func(s *model.Submission) { s.Email = "test.student.uib.no" }, model.InvalidEmail},
		{"email without dot in domain", func(s *model.Submission) { s.Email = "test@localhost" }, model.InvalidEmail},
		{"empty email", func(s *model.Submission) { s.Email = "" }, model.InvalidEmail},
		{"degree year zero", func(s *model.Submission) { s.DegreeYear = 0 }, model.InvalidDegreeYear},
		{"degree year six", func(s *model.Submission) { s.DegreeYear = 6 }, model.InvalidDegreeYear},
		{"bachelor in year four", func(s *model.Submission) { s.DegreeYear = 4 }, model.DegreeMismatchBachelor},
		{"master in year two", func(s *model.Submission) { s.Degree = model.DegreeINF; s.DegreeYear = 2 }, model.DegreeMismatchMaster},
		{"master in year five", func(s *model.Submission) { s.Degree = model.DegreePROG; s.DegreeYear = 5 }, model.Eligible},
		{"armninf in year two", func(s *model.Submission) { s.Degree = model.DegreeARMNINF; s.DegreeYear = 2 }, model.DegreeMismatchArmninf},
		{"armninf in year one", func(s *model.Submission) { s.Degree = model.DegreeARMNINF; s.DegreeYear = 1 }, model.Eligible},
		{"kogni in year one", func(s *model.Submission) { s.Degree = model.DegreeKOGNI; s.DegreeYear = 1 }, model.DegreeMismatchKogni},
		{"kogni in year four fails bachelor rule first", func(s *model.Submission) { s.Degree = model.DegreeKOGNI; s.DegreeYear = 4 }, model.DegreeMismatchBachelor},
		{"kogni in year three", func(s *model.Submission) { s.Degree = model.DegreeKOGNI; s.DegreeYear = 3 }, model.Eligible},
		{"misc in any year", func(s *model.Submission) { s.Degree = model.DegreeMISC; s.DegreeYear = 5 }, model.Eligible},
		{"terms not accepted", func(s *model.Submission) { s.TermsAccepted = false }, model.InvalidTerms},
		{"invalid email wins over everything", func(s *model.Submission) {
			s.Email = "nope"
			s.DegreeYear = 6
			s.TermsAccepted = false
		}, model.InvalidEmail},
		{"invalid year wins over terms", func(s *model.Submission) {
			s.DegreeYear = 6
			s.TermsAccepted = false
		}, model.InvalidDegreeYear},
	}

	for _, test := range tests {
		s := validSubmission()
		test.mutate(&s)
		assert.Equalf(t, test.expected, Check(s), test.description)
	}
}

func TestCheckBachelorsAndMasters(t *testing.T) {
	for _, d := range model.Degrees {
		for year := MinDegreeYear; year <= MaxDegreeYear; year++ {
			s := validSubmission()
			s.Degree = d
			s.DegreeYear = year
			code := Check(s)

			switch {
			case IsBachelor(d) && year > 3:
				assert.Equal(t, model.DegreeMismatchBachelor, code, "%s year %d", d, year)
			case IsMaster(d) && year < 4:
				assert.Equal(t, model.DegreeMismatchMaster, code, "%s year %d", d, year)
			}
		}
	}
}
