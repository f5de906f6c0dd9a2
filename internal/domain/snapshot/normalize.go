package snapshot

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrMalformedOdds  = errors.New("malformed odds")
	ErrInvalidRecord  = errors.New("invalid snapshot record")
	minOdds           = decimal.RequireFromString("1.01")
	maxOdds           = decimal.NewFromInt(1000)
	oddsStrayChars    = regexp.MustCompile(`[^0-9.]`)
	scorePattern      = regexp.MustCompile(`(\d+)\s*[-:–]\s*(\d+)`)
	minuteMarker      = regexp.MustCompile(`^\d{1,3}(\+\d{1,2})?'?$`)
	kickoffDateFormat = regexp.MustCompile(`^(\d{1,2})[./](\d{1,2})(?:[./](\d{2,4}))?$`)
	kickoffClock      = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

const maxScore = 50

// ParseOdds normalizes free-form odds text: locale comma separators and stray
// characters are tolerated, values below 1.01 are rejected.
func ParseOdds(text string) (decimal.Decimal, error) {
	v := strings.TrimSpace(text)
	if v == "" || v == "-" {
		return decimal.Decimal{}, fmt.Errorf("%w: empty", ErrMalformedOdds)
	}
	v = strings.ReplaceAll(v, ",", ".")
	v = oddsStrayChars.ReplaceAllString(v, "")
	v = strings.Trim(v, ".")
	if v == "" || strings.Count(v, ".") > 1 {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrMalformedOdds, text)
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrMalformedOdds, text)
	}
	if d.LessThan(minOdds) || d.GreaterThan(maxOdds) {
		return decimal.Decimal{}, fmt.Errorf("%w: %q out of range", ErrMalformedOdds, text)
	}
	return d, nil
}

// ParseScore reads "2-1" or "2:1" style text. Anything outside 0..49 per side
// is treated as no score.
func ParseScore(text string) (*int, *int) {
	m := scorePattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return nil, nil
	}
	home, ok := parseScorePart(m[1])
	if !ok {
		return nil, nil
	}
	away, ok := parseScorePart(m[2])
	if !ok {
		return nil, nil
	}
	return &home, &away
}

func parseScorePart(text string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || v < 0 || v >= maxScore {
		return 0, false
	}
	return v, true
}

// ParseKickoff combines "dd.mm" (optionally with a year) and "HH:MM" in loc.
// Without a year the current one is used, rolling forward when the date would
// be more than half a year in the past. Unparseable input yields now.
func ParseKickoff(date, clock string, now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	date = strings.ToLower(strings.TrimSpace(date))
	clock = strings.TrimSpace(clock)

	year, month, day := local.Date()
	switch date {
	case "", "today":
	case "tomorrow":
		year, month, day = local.AddDate(0, 0, 1).Date()
	default:
		m := kickoffDateFormat.FindStringSubmatch(date)
		if m == nil {
			return now
		}
		d, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		if d < 1 || d > 31 || mo < 1 || mo > 12 {
			return now
		}
		day, month = d, time.Month(mo)
		if m[3] != "" {
			y, _ := strconv.Atoi(m[3])
			if y < 100 {
				y += 2000
			}
			year = y
		}
	}

	if clock == "" {
		if date == "" {
			return now
		}
		clock = "00:00"
	}
	c := kickoffClock.FindStringSubmatch(clock)
	if c == nil {
		return now
	}
	hour, _ := strconv.Atoi(c[1])
	minute, _ := strconv.Atoi(c[2])
	if hour > 23 || minute > 59 {
		return now
	}

	out := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if out.Day() != day {
		return now
	}
	if out.Before(local.AddDate(0, -6, 0)) {
		out = out.AddDate(1, 0, 0)
	}
	return out.UTC()
}

var (
	finishedPhrases = []string{"full time", "finished", "ended", "final result", "after penalties", "after extra time"}
	finishedTokens  = map[string]struct{}{"ft": {}, "aet": {}, "ap": {}}
	halftimePhrases = []string{"half time", "halftime", "half-time", "break"}
	halftimeTokens  = map[string]struct{}{"ht": {}}
	canceledPhrases = []string{"cancel", "postponed", "abandoned", "suspended"}
	livePhrases     = []string{"live", "1st half", "2nd half", "first half", "second half", "extra time", "penalties"}
)

// NormalizeStatusHint maps the free status text of a listing to a hint.
func NormalizeStatusHint(text string) StatusHint {
	v := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if v == "" {
		return HintNone
	}
	tokens := strings.FieldsFunc(v, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})

	// "suspended" contains "ended", so canceled wins the tie.
	if containsAny(v, canceledPhrases) {
		return HintCanceled
	}
	if containsAny(v, finishedPhrases) || hasToken(tokens, finishedTokens) {
		return HintFinished
	}
	if containsAny(v, halftimePhrases) || hasToken(tokens, halftimeTokens) {
		return HintHalftime
	}
	if containsAny(v, livePhrases) || minuteMarker.MatchString(strings.ReplaceAll(v, " ", "")) {
		return HintLive
	}
	return HintNone
}

func containsAny(v string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(v, phrase) {
			return true
		}
	}
	return false
}

func hasToken(tokens []string, set map[string]struct{}) bool {
	for _, token := range tokens {
		if _, ok := set[token]; ok {
			return true
		}
	}
	return false
}
