// Package triggerspec validates (but never dispatches) the schedule
// triggers a Workflow's Trigger and a TransformPipeline's Schedule may
// carry. §1/§5 place trigger firing out of scope: the engine accepts and
// persists trigger configuration but never fires it. This package's only
// job is to reject a malformed cron expression eagerly, the same way the
// rest of this codebase's input validation collects errors up front rather
// than failing at dispatch time (which never happens here).
package triggerspec

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts the five standard cron fields (minute hour day-of-month
// month day-of-week); this codebase's trigger configs never use the
// optional seconds field robfig/cron also supports.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCron reports whether expr parses as a standard five-field cron
// expression. It never schedules or fires anything — the parsed
// cron.Schedule is discarded once validity is established.
func ValidateCron(expr string) error {
	if expr == "" {
		return fmt.Errorf("triggerspec: empty cron expression")
	}
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("triggerspec: invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// ScheduleConfig is the opaque shape a workflow.Trigger{Kind: schedule} or a
// TransformPipeline.Schedule carries: a cron string plus an optional IANA
// timezone name, both validate-only.
type ScheduleConfig struct {
	Cron     string `json:"cron"`
	Timezone string `json:"timezone,omitempty"`
}

// Validate checks c.Cron parses and, when set, c.Timezone names a loadable
// IANA zone. It is the sole validation entrypoint a trigger/schedule config
// should go through before being persisted; it never causes the trigger to
// fire.
func (c ScheduleConfig) Validate() error {
	if err := ValidateCron(c.Cron); err != nil {
		return err
	}
	if c.Timezone != "" {
		if err := validateTimezone(c.Timezone); err != nil {
			return err
		}
	}
	return nil
}

func validateTimezone(name string) error {
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("triggerspec: invalid timezone %q: %w", name, err)
	}
	return nil
}
