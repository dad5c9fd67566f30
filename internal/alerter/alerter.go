package alerter

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"TrafficLens/internal/config"
	"TrafficLens/internal/model"
)

// Alerter evaluates each collection cycle's outcomes against the configured
// rules and sends a consolidated notification when any rule triggers.
type Alerter struct {
	rules    []config.AlerterRule
	notifier model.Notifier

	mu               sync.Mutex
	consecutiveFails map[string]int
}

// New creates a new Alerter instance.
func New(cfg *config.AlerterConfig, notifier model.Notifier) *Alerter {
	return &Alerter{
		rules:            cfg.Rules,
		notifier:         notifier,
		consecutiveFails: make(map[string]int),
	}
}

// Observe records one cycle's outcomes and evaluates all rules. It is called
// from the cycle's join point, after every sensor task has finished.
func (a *Alerter) Observe(outcomes []model.SensorOutcome) {
	a.mu.Lock()
	for _, o := range outcomes {
		if o.Failed() {
			a.consecutiveFails[o.Sensor]++
		} else {
			a.consecutiveFails[o.Sensor] = 0
		}
	}
	a.mu.Unlock()

	var triggered []string
	for _, rule := range a.rules {
		for _, o := range outcomes {
			if rule.Sensor != "" && rule.Sensor != o.Sensor {
				continue
			}

			var currentValue float64
			var unit string
			switch rule.Metric {
			case "consecutive_failures":
				a.mu.Lock()
				currentValue = float64(a.consecutiveFails[o.Sensor])
				a.mu.Unlock()
				unit = "cycles"
			case "peak_occupancy":
				currentValue = float64(o.PeakOccupancy)
				unit = "people"
			default:
				log.Printf("Warning: unknown metric '%s' in alerter rule '%s'", rule.Metric, rule.Name)
				continue
			}

			if !check(currentValue, rule.Threshold, rule.Operator) {
				continue
			}

			msg := fmt.Sprintf("<h3>Alert: %s</h3>"+
				"<ul>"+
				"<li><b>Sensor:</b> <code>%s</code></li>"+
				"<li><b>Metric:</b> <code>%s</code></li>"+
				"<li><b>Condition:</b> <code>%s %.2f</code></li>"+
				"<li><b>Observed Value:</b> <code>%.0f %s</code></li>"+
				"</ul>",
				rule.Name, o.Sensor, rule.Metric, rule.Operator, rule.Threshold, currentValue, unit)
			triggered = append(triggered, msg)
		}
	}

	if len(triggered) == 0 {
		return
	}

	log.Printf("Alerter evaluation completed. %d alert(s) triggered.", len(triggered))

	if a.notifier == nil {
		return
	}

	body := "<h1>TrafficLens Alert Summary</h1>" +
		"<p>The following alerts were triggered during the last collection cycle:</p><hr>" +
		strings.Join(triggered, "<hr>")
	subject := fmt.Sprintf("TrafficLens Alert Summary (%d Triggered)", len(triggered))

	if err := a.notifier.Send(subject, body); err != nil {
		log.Printf("ERROR: Failed to send consolidated alert notification: %v", err)
	} else {
		log.Printf("INFO: Consolidated alert notification sent successfully.")
	}
}

// check compares a value against a threshold based on an operator.
func check(value, threshold float64, operator string) bool {
	switch operator {
	case ">":
		return value > threshold
	case "<":
		return value < threshold
	case "=":
		return value == threshold
	case ">=":
		return value >= threshold
	case "<=":
		return value <= threshold
	default:
		log.Printf("Warning: unknown operator '%s' in alerter rule", operator)
		return false
	}
}
