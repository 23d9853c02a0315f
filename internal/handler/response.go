package handler

import (
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/happening-registration/internal/model"
	"github.com/Shivanand-hulikatti/happening-registration/internal/service"
)

const tryAgain = "Please try again."

// registrationResponse is the body returned for every submission.
type registrationResponse struct {
	Code  model.Code `json:"code"`
	Title string     `json:"title"`
	Desc  string     `json:"desc"`
	Date  *string    `json:"date,omitempty"`
}

// describe renders an admission outcome as a user-facing message.
func describe(out service.Outcome) registrationResponse {
	res := registrationResponse{Code: out.Code}
	if out.RegistrationOpensAt != nil {
		date := out.RegistrationOpensAt.UTC().Format(time.RFC3339)
		res.Date = &date
	}
	talk := out.HappeningType == model.HappeningTalk

	switch out.Code {
	case model.OK:
		res.Title = "Your registration has been received!"
		res.Desc = pick(talk, "You have a spot at the company presentation.", "You have a spot at the event.")
	case model.WaitList:
		res.Title = "All spots are unfortunately taken."
		res.Desc = "You have been put on the wait list and will be contacted if a spot opens up."
		if out.WaitListPosition > 0 {
			res.Desc = fmt.Sprintf("You are number %d on the wait list and will be contacted if a spot opens up.", out.WaitListPosition)
		}
	case model.InvalidEmail:
		res.Title = "Please enter a valid email address."
	case model.InvalidDegreeYear:
		res.Title = "Please select a valid degree year."
	case model.InvalidTerms:
		res.Title = pick(talk, "You must accept the company presentation guidelines.", "You must accept the terms.")
		res.Desc = tryAgain
	case model.DegreeMismatchBachelor, model.DegreeMismatchMaster,
		model.DegreeMismatchKogni, model.DegreeMismatchArmninf:
		res.Title = "Degree and degree year do not match."
		res.Desc = tryAgain
	case model.AlreadySubmitted:
		res.Title = "You are already registered."
		res.Desc = "You already have a spot."
	case model.AlreadySubmittedWaitList:
		res.Title = "You are already registered."
		res.Desc = "You are on the wait list."
	case model.NotViaForm:
		res.Title = "You must register through the website."
		res.Desc = "It looks like you tried to register outside the website. If you think this is wrong, please contact us."
	case model.TooEarly:
		res.Title = "Registration is not open yet."
		res.Desc = "Please wait."
	case model.TooLate:
		res.Title = "Registration is closed."
		res.Desc = "It is no longer possible to register."
	case model.HappeningNotFound:
		res.Title = pick(talk, "This company presentation does not exist.", "This event does not exist.")
		res.Desc = "If you think this is wrong, please contact us."
	case model.NotInRange:
		res.Title = "Unfortunately you cannot register."
		res.Desc = describeRanges(talk, out.SpotRanges)
	default:
		res.Title = "Something went wrong."
		res.Desc = tryAgain
	}
	return res
}

// describeRanges lists who a happening is open to. Happenings with more
// than three ranges get no description.
func describeRanges(talk bool, ranges []model.SpotRange) string {
	prefix := pick(talk, "This company presentation is only open to ", "This event is only open to ")
	span := func(sr model.SpotRange) string {
		return fmt.Sprintf("year %d to %d", sr.MinDegreeYear, sr.MaxDegreeYear)
	}
	switch len(ranges) {
	case 1:
		return prefix + span(ranges[0]) + "."
	case 2:
		return prefix + span(ranges[0]) + " and " + span(ranges[1]) + "."
	case 3:
		return prefix + span(ranges[0]) + ", " + span(ranges[1]) + " and " + span(ranges[2]) + "."
	}
	return ""
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
