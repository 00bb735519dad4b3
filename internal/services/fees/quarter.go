package fees

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Quarter is a calendar quarter: Q1 is Jan–Mar, Q4 is Oct–Dec.
type Quarter struct {
	Year int
	Q    int
}

// QuarterOf returns the quarter containing t, evaluated in UTC.
func QuarterOf(t time.Time) Quarter {
	t = t.UTC()
	return Quarter{Year: t.Year(), Q: (int(t.Month())-1)/3 + 1}
}

// ParseQuarter parses a "YYYY-Qn" label.
func ParseQuarter(label string) (Quarter, error) {
	var q Quarter
	if _, err := fmt.Sscanf(label, "%d-Q%d", &q.Year, &q.Q); err != nil {
		return Quarter{}, fmt.Errorf("parse quarter %q: %w", label, err)
	}
	if q.Q < 1 || q.Q > 4 {
		return Quarter{}, fmt.Errorf("parse quarter %q: quarter out of range", label)
	}
	return q, nil
}

func (q Quarter) Label() string {
	return fmt.Sprintf("%d-Q%d", q.Year, q.Q)
}

func (q Quarter) String() string {
	return q.Label()
}

// Start is midnight UTC on the first day of the quarter.
func (q Quarter) Start() time.Time {
	return time.Date(q.Year, time.Month((q.Q-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
}

// End is the last nanosecond of the quarter.
func (q Quarter) End() time.Time {
	return q.Next().Start().Add(-time.Nanosecond)
}

func (q Quarter) StartDate() string {
	return q.Start().Format(DateLayout)
}

func (q Quarter) EndDate() string {
	return q.End().Format(DateLayout)
}

func (q Quarter) Previous() Quarter {
	if q.Q == 1 {
		return Quarter{Year: q.Year - 1, Q: 4}
	}
	return Quarter{Year: q.Year, Q: q.Q - 1}
}

func (q Quarter) Next() Quarter {
	if q.Q == 4 {
		return Quarter{Year: q.Year + 1, Q: 1}
	}
	return Quarter{Year: q.Year, Q: q.Q + 1}
}

// IsFirstDayOfQuarter reports whether t falls on the quarter's first UTC day.
func IsFirstDayOfQuarter(t time.Time) bool {
	t = t.UTC()
	return t.Day() == 1 && (int(t.Month())-1)%3 == 0
}

// IsLastDayOfQuarter reports whether t falls on the quarter's last UTC day.
func IsLastDayOfQuarter(t time.Time) bool {
	t = t.UTC()
	return QuarterOf(t.AddDate(0, 0, 1)) != QuarterOf(t)
}

// DayString formats t as a UTC calendar day.
func DayString(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
