package alerter

import (
	"strings"
	"testing"

	"TrafficLens/internal/config"
	"TrafficLens/internal/model"
)

type fakeNotifier struct {
	subjects []string
	bodies   []string
}

func (f *fakeNotifier) Send(subject, body string) error {
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, body)
	return nil
}

func TestObserve_ConsecutiveFailures(t *testing.T) {
	// 1. Alert after three consecutive failed cycles
	cfg := &config.AlerterConfig{
		Enabled: true,
		Rules: []config.AlerterRule{
			{Name: "sensor-unreachable", Metric: "consecutive_failures", Operator: ">=", Threshold: 3},
		},
	}
	notifier := &fakeNotifier{}
	a := New(cfg, notifier)

	failed := []model.SensorOutcome{{Sensor: "s1", Failures: []string{"timeout"}}}

	// 2. Two failed cycles stay below the threshold
	a.Observe(failed)
	a.Observe(failed)
	if len(notifier.subjects) != 0 {
		t.Fatalf("Expected no notification after 2 failures, got %d", len(notifier.subjects))
	}

	// 3. The third failed cycle triggers the rule
	a.Observe(failed)
	if len(notifier.subjects) != 1 {
		t.Fatalf("Expected 1 notification after 3 failures, got %d", len(notifier.subjects))
	}
	if !strings.Contains(notifier.bodies[0], "sensor-unreachable") {
		t.Errorf("Expected rule name in body, got: %s", notifier.bodies[0])
	}

	// 4. A successful cycle resets the counter
	a.Observe([]model.SensorOutcome{{Sensor: "s1"}})
	a.Observe(failed)
	if len(notifier.subjects) != 1 {
		t.Errorf("Expected counter reset after success, got %d notifications", len(notifier.subjects))
	}
}

func TestObserve_PeakOccupancy(t *testing.T) {
	cfg := &config.AlerterConfig{
		Enabled: true,
		Rules: []config.AlerterRule{
			{Name: "crowding", Sensor: "entrance", Metric: "peak_occupancy", Operator: ">", Threshold: 250},
		},
	}
	notifier := &fakeNotifier{}
	a := New(cfg, notifier)

	// 1. The rule is scoped to one sensor, so another sensor's peak is ignored
	a.Observe([]model.SensorOutcome{
		{Sensor: "warehouse", PeakOccupancy: 400},
		{Sensor: "entrance", PeakOccupancy: 120},
	})
	if len(notifier.subjects) != 0 {
		t.Fatalf("Expected no notification, got %d", len(notifier.subjects))
	}

	// 2. The scoped sensor crossing the threshold triggers
	a.Observe([]model.SensorOutcome{{Sensor: "entrance", PeakOccupancy: 300}})
	if len(notifier.subjects) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(notifier.subjects))
	}
	if !strings.Contains(notifier.bodies[0], "entrance") {
		t.Errorf("Expected sensor name in body, got: %s", notifier.bodies[0])
	}
}

func TestObserve_NoNotifier(t *testing.T) {
	cfg := &config.AlerterConfig{
		Enabled: true,
		Rules: []config.AlerterRule{
			{Name: "any-failure", Metric: "consecutive_failures", Operator: ">=", Threshold: 1},
		},
	}
	a := New(cfg, nil)

	// Evaluation without a notifier must not panic
	a.Observe([]model.SensorOutcome{{Sensor: "s1", Failures: []string{"boom"}}})
}

func TestCheck(t *testing.T) {
	cases := []struct {
		value     float64
		threshold float64
		operator  string
		want      bool
	}{
		{5, 3, ">", true},
		{3, 3, ">", false},
		{3, 3, ">=", true},
		{2, 3, "<", true},
		{3, 3, "=", true},
		{4, 3, "<=", false},
		{4, 3, "??", false},
	}
	for _, c := range cases {
		if got := check(c.value, c.threshold, c.operator); got != c.want {
			t.Errorf("check(%v, %v, %q): expected %v, got %v", c.value, c.threshold, c.operator, got, c.want)
		}
	}
}
