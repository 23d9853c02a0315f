// Package eligibility checks a registration submission against the static
// rules every happening shares. It performs no I/O.
package eligibility

import (
	"github.com/Shivanand-hulikatti/happening-registration/internal/model"
	"github.com/Shivanand-hulikatti/happening-registration/pkg/validator"
)

const (
	MinDegreeYear = 1
	MaxDegreeYear = 5
)

var (
	bachelors = map[model.Degree]bool{
		model.DegreeDTEK:  true,
		model.DegreeDSIK:  true,
		model.DegreeDVIT:  true,
		model.DegreeBINF:  true,
		model.DegreeIMO:   true,
		model.DegreeIKT:   true,
		model.DegreeKOGNI: true,
	}
	masters = map[model.Degree]bool{
		model.DegreeINF:  true,
		model.DegreePROG: true,
	}

	bachelorYears = model.DegreeYearRange{Min: 1, Max: 3}
	masterYears   = model.DegreeYearRange{Min: 4, Max: 5}
)

// pinnedYear is a degree that only admits a single degree year.
type pinnedYear struct {
	degree model.Degree
	year   int
	code   model.Code
}

// Checked in order; the first mismatch wins.
var pinnedYears = []pinnedYear{
	{degree: model.DegreeARMNINF, year: 1, code: model.DegreeMismatchArmninf},
	{degree: model.DegreeKOGNI, year: 3, code: model.DegreeMismatchKogni},
}

// Check returns model.Eligible when s passes every rule, otherwise the code
// of the first failing rule.
func Check(s model.Submission) model.Code {
	if !validator.Email(model.NormalizeEmail(s.Email)) {
		return model.InvalidEmail
	}
	if s.DegreeYear < MinDegreeYear || s.DegreeYear > MaxDegreeYear {
		return model.InvalidDegreeYear
	}
	if bachelors[s.Degree] && !bachelorYears.Contains(s.DegreeYear) {
		return model.DegreeMismatchBachelor
	}
	if masters[s.Degree] && !masterYears.Contains(s.DegreeYear) {
		return model.DegreeMismatchMaster
	}
	for _, p := range pinnedYears {
		if s.Degree == p.degree && s.DegreeYear != p.year {
			return p.code
		}
	}
	if !s.TermsAccepted {
		return model.InvalidTerms
	}
	return model.Eligible
}

// IsBachelor reports whether d is a bachelor-track degree.
func IsBachelor(d model.Degree) bool { return bachelors[d] }

// IsMaster reports whether d is a master-track degree.
func IsMaster(d model.Degree) bool { return masters[d] }
