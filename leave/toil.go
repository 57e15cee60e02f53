/*
toil.go - TOIL hour calculation

PURPOSE:
  Converts a travel/coverage scenario into the number of TOIL hours it
  earns. The rule table encodes UK employment contract clauses and is
  authoritative business policy; do not "simplify" it.

RULE TABLE:
  local_show             0 hours, unconditionally
  working_day_panel      4 hours, unconditionally
  overnight_day_off      4 hours, unconditionally (Saturday, Sunday and
                         public holidays are all non-working days here)
  overnight_working_day  bracketed by return time:
                           before 19:00        0
                           19:00 - 19:59       1
                           20:00 - 20:59       2
                           21:00 - 21:59       3
                           22:00 or later      4
                           after midnight      4

  Brackets are closed-open on the hour: minutes within an hour never change
  the result (19:30 and 19:59 both yield 1).

CONTRACT:
  CalculateTOILHours is pure and deterministic, no I/O, no side effects.
  A missing required field for the given scenario returns nil, meaning
  "cannot calculate yet" - the caller decides whether that is fatal.
  Chronological sanity (return before travel, past dates) is the
  validator's job, not the calculator's.

SEE ALSO:
  - types.go: TOILRequest, TOILScenario
  - validate.go: feature gating and balance checks
*/
package leave

import (
	"regexp"
	"strconv"
)

// Return-time brackets for overnight working-day travel, in hour-of-day.
const (
	toilBracketOneHour    = 19
	toilBracketTwoHours   = 20
	toilBracketThreeHours = 21
	toilBracketFourHours  = 22

	// Arrivals between midnight and this hour count as "after midnight"
	// for the previous day's travel and earn the full four hours.
	toilAfterMidnightCutoff = 4
)

// CalculateTOILHours computes how many TOIL hours the given scenario earns.
// Returns nil when a required field for the scenario is missing or a
// supplied return time is malformed.
func CalculateTOILHours(req TOILRequest) *int {
	if !req.Scenario.Known() || req.TravelDate == nil {
		return nil
	}

	switch req.Scenario {
	case ScenarioLocalShow:
		return intPtr(0)

	case ScenarioWorkingDayPanel:
		return intPtr(4)

	case ScenarioOvernightDayOff:
		if req.ReturnDate == nil {
			return nil
		}
		return intPtr(4)

	case ScenarioOvernightWorkingDay:
		if req.ReturnDate == nil {
			return nil
		}
		hour, ok := parseReturnHour(req.ReturnTime)
		if !ok {
			return nil
		}
		return intPtr(bracketHours(hour))
	}

	return nil
}

// bracketHours maps a 24-hour arrival hour to the earned TOIL hours.
func bracketHours(hour int) int {
	switch {
	case hour < toilAfterMidnightCutoff:
		return 4
	case hour < toilBracketOneHour:
		return 0
	case hour < toilBracketTwoHours:
		return 1
	case hour < toilBracketThreeHours:
		return 2
	case hour < toilBracketFourHours:
		return 3
	default:
		return 4
	}
}

// returnTimePattern accepts HH:MM with optional trailing :SS and optional
// timezone annotation (e.g. "22:15", "22:15:00", "22:15:00Z", "22:15 GMT").
var returnTimePattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::\d{2})?(?:\s*([A-Za-z+].*))?$`)

// meridiemPattern matches am/pm markers. Those make the literal 12-hour, and
// bracketing a 12-hour time as 24-hour would silently award the wrong hours,
// so the whole value is treated as malformed instead.
var meridiemPattern = regexp.MustCompile(`(?i)^[ap]\.?m\.?$`)

// parseReturnHour normalizes a literal return time to a 24-hour hour-of-day.
// A malformed time is treated as missing.
func parseReturnHour(s string) (int, bool) {
	m := returnTimePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	if meridiemPattern.MatchString(m[3]) {
		return 0, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(m[2])
	if err != nil || minute > 59 {
		return 0, false
	}
	return hour, true
}

func intPtr(v int) *int { return &v }
