package retry

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Defaults
const (
	DefaultSchedule  = "@every 30s"
	DefaultBaseDelay = 2 * time.Second
	DefaultMaxDelay  = 5 * time.Minute
)

// Backoff computes the wait before the next retry of an entry
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns min(Base * 2^retryCount, Max)
func (b Backoff) Delay(retryCount int) time.Duration {
	base, max := b.Base, b.Max
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if max <= 0 {
		max = DefaultMaxDelay
	}

	d := base
	for i := 0; i < retryCount; i++ {
		if d >= max/2 {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}

var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses a five-field cron expression or a descriptor such as
// "@every 30s" or "@hourly".
func ParseSchedule(spec string) (cron.Schedule, error) {
	sched, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid retry schedule %q: %w", spec, err)
	}
	return sched, nil
}
