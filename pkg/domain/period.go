package domain

import (
	"fmt"
	"regexp"
	"time"

	dErrors "presente/pkg/domain-errors"
)

// Period is an academic term token of the form "YYYY-S" where S is 1 for the
// first semester (January through June) and 2 for the second (July through
// December). It is always passed explicitly through operation signatures;
// only the request boundary derives it from the wall clock.
type Period string

var periodPattern = regexp.MustCompile(`^\d{4}-[12]$`)

// PeriodFromTime derives the period containing t.
func PeriodFromTime(t time.Time) Period {
	semester := 1
	if t.Month() >= time.July {
		semester = 2
	}
	return Period(fmt.Sprintf("%04d-%d", t.Year(), semester))
}

// ParsePeriod validates a period token. The empty string is not a valid
// period; callers that mean "no period filter" carry that as absence, not as
// a sentinel value.
func ParsePeriod(s string) (Period, error) {
	if !periodPattern.MatchString(s) {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "period %q must match YYYY-S with S in {1,2}", s)
	}
	return Period(s), nil
}

func (p Period) String() string { return string(p) }

func (p Period) IsZero() bool { return p == "" }
