package core

import (
	"fmt"
	"time"
)

// dateLayout is the wire and storage format for calendar dates.
const dateLayout = "2006-01-02"

type (
	// Date is a calendar date without a time component.
	Date struct {
		time.Time
	}

	// Category is a named grouping for expenses. Names are unique.
	Category struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	// Expense is a single monetary record owned by exactly one Category.
	// Category is populated on reads that join the owning category and is
	// nil otherwise.
	Expense struct {
		ID          int64     `json:"id"`
		Amount      float64   `json:"amount"`
		Description string    `json:"description"`
		Date        Date      `json:"date"`
		CategoryID  int64     `json:"categoryId"`
		Category    *Category `json:"category,omitempty"`
	}
)

// Today returns the current calendar date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// NewDate creates a Date from year, month and day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("date must be a JSON string, got %s", data)
	}
	parsed, err := ParseDate(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
