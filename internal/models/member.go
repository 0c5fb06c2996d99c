package models

import (
	"strings"
	"time"
)

// AdultAge minimum age of an adult
const AdultAge = 18

// maxPlausibleAge ages at or above this come from placeholder birthdates
const maxPlausibleAge = 110

// MemberCategory roster member type ("Member Type" column)
type MemberCategory int

const (
	CategoryOther MemberCategory = iota
	CategoryAdult
	CategoryChild
	CategoryCaretaker
)

// ParseMemberCategory maps the roster text to a category.
func ParseMemberCategory(s string) MemberCategory {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "adult":
		return CategoryAdult
	case "child":
		return CategoryChild
	case "caretaker":
		return CategoryCaretaker
	default:
		return CategoryOther
	}
}

func (c MemberCategory) String() string {
	switch c {
	case CategoryAdult:
		return "Adult"
	case CategoryChild:
		return "Child"
	case CategoryCaretaker:
		return "Caretaker"
	default:
		return "Other"
	}
}

// Member a person on an account
type Member struct {
	ID        string
	AccountID string
	FirstName string
	LastName  string
	Category  MemberCategory
	Email     string
	Birthdate *time.Time // nil when unknown
}

// FullName "First Last"
func (m *Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// Age returns the age in whole years on asOf. ok is false when the
// birthdate is unknown or implausible.
func (m *Member) Age(asOf time.Time) (age int, ok bool) {
	if m.Birthdate == nil {
		return 0, false
	}
	b := *m.Birthdate
	age = asOf.Year() - b.Year()
	if asOf.Month() < b.Month() || (asOf.Month() == b.Month() && asOf.Day() < b.Day()) {
		age--
	}
	if age < 0 || age >= maxPlausibleAge {
		return 0, false
	}
	return age, true
}

// HasBirthdate reports whether the member has a usable birthdate.
func (m *Member) HasBirthdate(asOf time.Time) bool {
	_, ok := m.Age(asOf)
	return ok
}

// IsMinor uses the age when known, falling back to the Child category.
func (m *Member) IsMinor(asOf time.Time) bool {
	if age, ok := m.Age(asOf); ok {
		return age < AdultAge
	}
	return m.Category == CategoryChild
}
