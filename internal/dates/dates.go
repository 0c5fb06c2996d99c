// Package dates finds calendar dates in free text taken from signed
// documents. Matchers are tried in order; the first one that matches
// decides the result.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultYearPivot two digit years above the pivot are 19xx, others 20xx
const DefaultYearPivot = 26

// Match a date found by a Matcher, before calendar validation
type Match struct {
	Start int
	Year  int
	Month int
	Day   int
}

// Matcher recognises one date layout.
type Matcher struct {
	Name string
	// Find returns the match, or false when the layout does not occur.
	Find func(line string) (Match, bool)
}

// Parser ordered matcher list
type Parser struct {
	Matchers  []Matcher
	YearPivot int
}

// NewParser returns a parser with the default matchers.
func NewParser(yearPivot int) *Parser {
	return &Parser{Matchers: DefaultMatchers(), YearPivot: yearPivot}
}

// FindDate returns the byte offset where the date begins and the date.
// ok is false when no matcher applies or the matched fields are not a
// valid calendar date. start is len(line) when nothing matched and the
// match offset when the fields were invalid, so line[:start] is always
// the text before the date.
func (p *Parser) FindDate(line string) (start int, date time.Time, ok bool) {
	for _, m := range p.Matchers {
		match, found := m.Find(line)
		if !found {
			continue
		}
		d, valid := p.toDate(match)
		if !valid {
			return match.Start, time.Time{}, false
		}
		return match.Start, d, true
	}
	return len(line), time.Time{}, false
}

// Parse is FindDate without the offset, returning nil for no date.
func (p *Parser) Parse(text string) *time.Time {
	_, d, ok := p.FindDate(text)
	if !ok {
		return nil
	}
	return &d
}

func (p *Parser) toDate(m Match) (time.Time, bool) {
	year := m.Year
	if year < 0 {
		return time.Time{}, false
	}
	if year < 100 {
		if year > p.YearPivot {
			year += 1900
		} else {
			year += 2000
		}
	}
	if year < 1900 || m.Month < 1 || m.Month > 12 || m.Day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(m.Month), m.Day, 0, 0, 0, 0, time.UTC)
	if d.Day() != m.Day || int(d.Month()) != m.Month {
		return time.Time{}, false
	}
	return d, true
}

// DefaultMatchers in priority order.
func DefaultMatchers() []Matcher {
	return []Matcher{
		numeric("iso", `(\d{4})-(\d{1,2})-(\d{1,2})`, 2, 3, 1),
		numeric("slash", `(\d+)\s*/\s*(\d+)\s*/\s*(\d+)`, 1, 2, 3),
		numeric("dash", `(\d+)-(\d+)-(\d+)`, 1, 2, 3),
		numeric("packed", `(\d\d)(\d\d)(\d+)`, 1, 2, 3),
		numeric("dotted", `(\d\d)\.(\d\d)\.(\d+)`, 1, 2, 3),
		monthYear(),
		named("month-day-year", `(\w+)\.?\s+(\d+),?\s+(\d+)`, 1, 2, 3),
		named("day-month-year", `(\d+)\s+(\w+)\.?\s+(\d+)`, 2, 1, 3),
		yearOnly(),
	}
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return v
}

// numeric builds a matcher for all-digit layouts; month, day and year are
// submatch group numbers.
func numeric(name, pattern string, month, day, year int) Matcher {
	re := regexp.MustCompile(pattern)
	return Matcher{
		Name: name,
		Find: func(line string) (Match, bool) {
			idx := re.FindStringSubmatchIndex(line)
			if idx == nil {
				return Match{}, false
			}
			group := func(n int) string { return line[idx[2*n]:idx[2*n+1]] }
			return Match{
				Start: idx[0],
				Month: atoi(group(month)),
				Day:   atoi(group(day)),
				Year:  atoi(group(year)),
			}, true
		},
	}
}

var monthYearRe = regexp.MustCompile(`(\d+)/(\d+)`)

func monthYear() Matcher {
	return Matcher{
		Name: "month-year",
		Find: func(line string) (Match, bool) {
			idx := monthYearRe.FindStringSubmatchIndex(line)
			if idx == nil {
				return Match{}, false
			}
			return Match{
				Start: idx[0],
				Month: atoi(line[idx[2]:idx[3]]),
				Day:   1,
				Year:  atoi(line[idx[4]:idx[5]]),
			}, true
		},
	}
}

// named finds layouts with a spelled out month. Occurrences whose word is
// not a month name are skipped.
func named(name, pattern string, month, day, year int) Matcher {
	re := regexp.MustCompile(pattern)
	return Matcher{
		Name: name,
		Find: func(line string) (Match, bool) {
			for _, idx := range re.FindAllStringSubmatchIndex(line, -1) {
				group := func(n int) string { return line[idx[2*n]:idx[2*n+1]] }
				mon := LookupMonth(group(month))
				if mon == 0 {
					continue
				}
				return Match{
					Start: idx[0],
					Month: mon,
					Day:   atoi(group(day)),
					Year:  atoi(group(year)),
				}, true
			}
			return Match{}, false
		},
	}
}

var yearOnlyRe = regexp.MustCompile(`(\d+)\z`)

func yearOnly() Matcher {
	return Matcher{
		Name: "year",
		Find: func(line string) (Match, bool) {
			idx := yearOnlyRe.FindStringSubmatchIndex(line)
			if idx == nil {
				return Match{}, false
			}
			return Match{Start: idx[0], Month: 1, Day: 1, Year: atoi(line[idx[2]:idx[3]])}, true
		},
	}
}

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// LookupMonth returns 1..12 for a month name or common abbreviation, else 0.
func LookupMonth(s string) int {
	s = strings.ToLower(s)
	if s == "sept" {
		return 9
	}
	for i, name := range monthNames {
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return i + 1
		}
	}
	return 0
}
