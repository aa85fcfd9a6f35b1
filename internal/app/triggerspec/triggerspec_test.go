package triggerspec_test

import (
	"testing"

	"github.com/flowlayer/enginecore/internal/app/triggerspec"
)

func TestValidateCronAcceptsStandardExpressions(t *testing.T) {
	cases := []string{"* * * * *", "0 9 * * 1-5", "*/15 * * * *", "0 0 1 1 *"}
	for _, expr := range cases {
		if err := triggerspec.ValidateCron(expr); err != nil {
			t.Errorf("expected %q to be valid, got %v", expr, err)
		}
	}
}

func TestValidateCronRejectsMalformedExpressions(t *testing.T) {
	cases := []string{"", "not a cron", "* * * *", "60 * * * *"}
	for _, expr := range cases {
		if err := triggerspec.ValidateCron(expr); err == nil {
			t.Errorf("expected %q to be rejected", expr)
		}
	}
}

func TestValidateCronNeverFires(t *testing.T) {
	// A malformed expression must fail eagerly rather than waiting for a
	// schedule to ever tick — there is no scheduler in this package to tick.
	if err := triggerspec.ValidateCron("bogus"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestScheduleConfigValidate(t *testing.T) {
	ok := triggerspec.ScheduleConfig{Cron: "0 * * * *", Timezone: "America/New_York"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	badCron := triggerspec.ScheduleConfig{Cron: "nope"}
	if err := badCron.Validate(); err == nil {
		t.Fatalf("expected invalid cron to fail")
	}

	badTZ := triggerspec.ScheduleConfig{Cron: "0 * * * *", Timezone: "Nowhere/Imaginary"}
	if err := badTZ.Validate(); err == nil {
		t.Fatalf("expected invalid timezone to fail")
	}
}

func TestScheduleConfigValidateEmptyTimezoneOptional(t *testing.T) {
	cfg := triggerspec.ScheduleConfig{Cron: "0 * * * *"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected empty timezone to be accepted, got %v", err)
	}
}
