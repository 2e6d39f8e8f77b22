package dateparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind classifies the outcome of parsing a date expression.
type Kind int

const (
	KindInvalid Kind = iota
	KindTimestamp
	KindOnDemand
)

// Result is the parsed form of a marketing-platform date expression.
type Result struct {
	Kind Kind
	Time time.Time
}

// Expressions look like "21 August, 10-11:00 BST" or "19 June, 10:00". The
// end-hour and timezone abbreviation are decorative and ignored. Anchored so
// expressions with leading junk are rejected rather than partially matched.
var exprRe = regexp.MustCompile(`^(\d+)\s+([A-Za-z]+),\s+(\d+)(?:-\d+)?:(\d+)`)

var months = map[string]time.Month{
	"january":   time.January,
	"february":  time.February,
	"march":     time.March,
	"april":     time.April,
	"may":       time.May,
	"june":      time.June,
	"july":      time.July,
	"august":    time.August,
	"september": time.September,
	"october":   time.October,
	"november":  time.November,
	"december":  time.December,
}

// Parser converts free-form date expressions into occurrence start times.
type Parser struct {
	loc *time.Location
	now func() time.Time
}

// NewParser builds a parser anchored to the given location. Upstream emits
// wall-clock times for Europe/London.
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{loc: loc, now: time.Now}
}

// Parse classifies raw. "on demand" anywhere in the expression wins over the
// timestamp form. Timestamps carry no year: the current year is assumed and
// rolled forward when the result would be in the past.
func (p *Parser) Parse(raw string) Result {
	if strings.Contains(strings.ToLower(raw), "on demand") {
		return Result{Kind: KindOnDemand}
	}

	m := exprRe.FindStringSubmatch(raw)
	if m == nil {
		return Result{Kind: KindInvalid}
	}

	day, _ := strconv.Atoi(m[1])
	month, ok := parseMonth(m[2])
	if !ok {
		return Result{Kind: KindInvalid}
	}
	hour, _ := strconv.Atoi(m[3])
	minute, _ := strconv.Atoi(m[4])

	if hour > 23 || minute > 59 {
		return Result{Kind: KindInvalid}
	}

	now := p.now().In(p.loc)
	t := time.Date(now.Year(), month, day, hour, minute, 0, 0, p.loc)
	if t.Day() != day || t.Month() != month {
		// time.Date normalized an out-of-range day like "31 June"
		return Result{Kind: KindInvalid}
	}

	if t.Before(now) {
		t = time.Date(now.Year()+1, month, day, hour, minute, 0, 0, p.loc)
		if t.Day() != day || t.Month() != month {
			// "29 February" exists this year but not next, so the rollover
			// would silently land on March 1
			return Result{Kind: KindInvalid}
		}
	}

	return Result{Kind: KindTimestamp, Time: t}
}

func parseMonth(name string) (time.Month, bool) {
	lowered := strings.ToLower(name)
	if m, ok := months[lowered]; ok {
		return m, true
	}
	if len(lowered) >= 3 {
		for full, m := range months {
			if strings.HasPrefix(full, lowered) {
				return m, true
			}
		}
	}
	return 0, false
}
