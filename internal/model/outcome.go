package model

// Code tags the result of an admission or cancellation. Every engine
// operation reports one of these; none are signalled with errors.
type Code string

const (
	// Eligible is returned by the eligibility check when every rule passes.
	Eligible Code = "Eligible"

	OK                       Code = "OK"
	WaitList                 Code = "WaitList"
	InvalidEmail             Code = "InvalidEmail"
	InvalidDegreeYear        Code = "InvalidDegreeYear"
	DegreeMismatchBachelor   Code = "DegreeMismatchBachelor"
	DegreeMismatchMaster     Code = "DegreeMismatchMaster"
	DegreeMismatchKogni      Code = "DegreeMismatchKogni"
	DegreeMismatchArmninf    Code = "DegreeMismatchArmninf"
	InvalidTerms             Code = "InvalidTerms"
	HappeningNotFound        Code = "HappeningDoesntExist"
	NotViaForm               Code = "NotViaForm"
	TooEarly                 Code = "TooEarly"
	TooLate                  Code = "TooLate"
	NotInRange               Code = "NotInRange"
	AlreadySubmitted         Code = "AlreadySubmitted"
	AlreadySubmittedWaitList Code = "AlreadySubmittedWaitList"

	Deleted              Code = "Deleted"
	DeletedAndPromoted   Code = "DeletedAndPromoted"
	RegistrationNotFound Code = "RegistrationNotFound"
)

// IsValidationFailure reports whether c is a locally detectable input
// rejection that never touches storage.
func (c Code) IsValidationFailure() bool {
	switch c {
	case InvalidEmail, InvalidDegreeYear, DegreeMismatchBachelor,
		DegreeMismatchMaster, DegreeMismatchKogni, DegreeMismatchArmninf,
		InvalidTerms:
		return true
	}
	return false
}

// Admitted reports whether a registration was stored.
func (c Code) Admitted() bool {
	return c == OK || c == WaitList
}
