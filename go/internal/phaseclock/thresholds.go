package phaseclock

import (
	"fmt"
	"math"
	"time"

	"github.com/mcdev12/osce/go/internal/models"
)

const (
	KeyTwoMinutes   = "2min"
	KeyOneMinute    = "1min"
	KeyThirtySecond = "30sec"
)

// CountdownKey returns the fired-event key for the n-second countdown.
func CountdownKey(n int) string {
	return fmt.Sprintf("countdown%d", n)
}

// Kind groups threshold keys for listeners that don't care about the exact key.
type Kind string

const (
	KindTwoMinuteWarning Kind = "two_minute_warning"
	KindOneMinuteWarning Kind = "one_minute_warning"
	KindThirtySecWarning Kind = "thirty_second_warning"
	KindCountdown        Kind = "countdown"
)

type rule struct {
	key     string
	kind    Kind
	seconds int
	// only restricts the rule to a single phase when set.
	only models.Phase
}

// rules is ordered by descending seconds so crossed thresholds fire in time order.
var rules = buildRules()

func buildRules() []rule {
	r := []rule{
		{key: KeyTwoMinutes, kind: KindTwoMinuteWarning, seconds: 120, only: models.PhaseActivity},
		{key: KeyOneMinute, kind: KindOneMinuteWarning, seconds: 60},
		{key: KeyThirtySecond, kind: KindThirtySecWarning, seconds: 30},
	}
	for n := 10; n >= 1; n-- {
		r = append(r, rule{key: CountdownKey(n), kind: KindCountdown, seconds: n})
	}
	return r
}

func knownKey(key string) bool {
	for _, r := range rules {
		if r.key == key {
			return true
		}
	}
	return false
}

// ceilSeconds is the integer ceiling of d in seconds.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
