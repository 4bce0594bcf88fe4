package snapshot

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var lookbacks = []time.Duration{
	2 * time.Hour,
	2 * 24 * time.Hour,
	32 * 24 * time.Hour,
	367 * 24 * time.Hour,
}

// Window returns the latest complete period [start, end) of a standard cron expression as of
// now: end is the most recent firing at or before now and start the firing before it.
func Window(spec string, now time.Time) (time.Time, time.Time, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse cron %q: %w", spec, err)
	}

	for _, lb := range lookbacks {
		var prev, last time.Time
		for t := schedule.Next(now.Add(-lb)); !t.IsZero() && !t.After(now); t = schedule.Next(t) {
			prev, last = last, t
		}
		if !prev.IsZero() {
			return prev, last, nil
		}
	}
	return time.Time{}, time.Time{}, fmt.Errorf("cron %q fires less than twice a year", spec)
}
