package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDegreeUnmarshalRejectsUnknown(t *testing.T) {
	var sub Submission
	require.NoError(t, json.Unmarshal([]byte(`{"degree":"KOGNI","degreeYear":3}`), &sub))
	assert.Equal(t, DegreeKOGNI, sub.Degree)

	assert.Error(t, json.Unmarshal([]byte(`{"degree":"ASTRO"}`), &sub))
}

func TestSpotRange(t *testing.T) {
	sr := SpotRange{Spots: 0, MinDegreeYear: 1, MaxDegreeYear: 3}
	assert.True(t, sr.Unlimited())
	assert.True(t, sr.Contains(1))
	assert.True(t, sr.Contains(3))
	assert.False(t, sr.Contains(4))
}

func TestSubmissionRegistrationNormalizesEmail(t *testing.T) {
	sub := Submission{Email: "  Ola@Test.COM ", DegreeYear: 2, Answers: []Answer{{Question: "q", Answer: "a"}}}
	reg := sub.Registration("talk", true)
	assert.Equal(t, "ola@test.com", reg.Email)
	assert.Equal(t, "talk", reg.HappeningSlug)
	assert.True(t, reg.OnWaitList)
	assert.Len(t, reg.Answers, 1)
}

func TestCodeClassification(t *testing.T) {
	assert.True(t, DegreeMismatchKogni.IsValidationFailure())
	assert.False(t, NotInRange.IsValidationFailure())
	assert.True(t, WaitList.Admitted())
	assert.False(t, AlreadySubmitted.Admitted())
}
