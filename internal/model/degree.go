package model

import (
	"encoding/json"
	"fmt"
)

// Degree is the study programme a registrant is enrolled in.
type Degree string

const (
	DegreeDTEK    Degree = "DTEK"
	DegreeDSIK    Degree = "DSIK"
	DegreeDVIT    Degree = "DVIT"
	DegreeBINF    Degree = "BINF"
	DegreeIMO     Degree = "IMO"
	DegreeIKT     Degree = "IKT"
	DegreeKOGNI   Degree = "KOGNI"
	DegreeINF     Degree = "INF"
	DegreePROG    Degree = "PROG"
	DegreeARMNINF Degree = "ARMNINF"
	DegreePOST    Degree = "POST"
	DegreeMISC    Degree = "MISC"
)

// Degrees lists every known degree in declaration order.
var Degrees = []Degree{
	DegreeDTEK, DegreeDSIK, DegreeDVIT, DegreeBINF, DegreeIMO, DegreeIKT,
	DegreeKOGNI, DegreeINF, DegreePROG, DegreeARMNINF, DegreePOST, DegreeMISC,
}

// ParseDegree returns the Degree named by s.
func ParseDegree(s string) (Degree, error) {
	for _, d := range Degrees {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown degree %q", s)
}

// UnmarshalJSON rejects degrees outside the known set.
func (d *Degree) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDegree(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
