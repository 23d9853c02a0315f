package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"ola@student.uib.no", true},
		{"a.b+tag@test.com", true},
		{"ola@localhost", false},
		{"not-an-email", false},
		{"", false},
		{"@test.com", false},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, Email(tt.in), "Email(%q)", tt.in)
	}
}

func TestSlug(t *testing.T) {
	assert.True(t, Slug("bedpres-med-bekk-2030"))
	assert.False(t, Slug("Bedpres"))
	assert.False(t, Slug("double--dash"))
	assert.False(t, Slug(""))
}

func TestValidateMessages(t *testing.T) {
	type input struct {
		Name  string `validate:"required"`
		Spots int    `validate:"gte=0"`
	}

	err := Validate(context.Background(), input{})
	assert.EqualError(t, err, ErrFieldRequired+": input.Name")

	err = Validate(context.Background(), input{Name: "x", Spots: -1})
	assert.EqualError(t, err, ErrFieldBelowMinVal+": input.Spots")

	assert.NoError(t, Validate(context.Background(), input{Name: "x"}))
}
