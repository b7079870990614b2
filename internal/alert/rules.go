// Package alert raises operational alerts from trader health metrics.
package alert

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Health metric names the trader publishes after every cycle.
const (
	MetricCycleFailures = "consecutive_cycle_failures"
	MetricBarAgeMinutes = "bar_age_minutes"
	MetricSymbolErrors  = "symbol_errors"
	MetricOpenPositions = "open_positions"
	MetricDailyLossPct  = "daily_loss_pct"
)

// Rule defines an alert rule.
type Rule struct {
	Name     string        `mapstructure:"name"`
	Expr     string        `mapstructure:"expr"`
	For      time.Duration `mapstructure:"for"`
	Severity string        `mapstructure:"severity"`
	Message  string        `mapstructure:"message"`
}

// "metric op value"
var exprPattern = regexp.MustCompile(`^(\w+)\s*(>=|<=|==|!=|>|<)\s*(-?\d+(?:\.\d+)?)$`)

type condition struct {
	metric    string
	op        string
	threshold float64
}

func (r Rule) parse() (condition, error) {
	m := exprPattern.FindStringSubmatch(strings.TrimSpace(r.Expr))
	if m == nil {
		return condition{}, fmt.Errorf("alert %q: cannot parse expression %q", r.Name, r.Expr)
	}
	threshold, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return condition{}, fmt.Errorf("alert %q: %w", r.Name, err)
	}
	return condition{metric: m[1], op: m[2], threshold: threshold}, nil
}

// Validate rejects rules that could never fire.
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("alert rule without a name")
	}
	_, err := r.parse()
	return err
}

// Evaluate reports whether the rule's condition holds. A metric missing from
// metrics never matches.
func (r Rule) Evaluate(metrics map[string]float64) bool {
	c, err := r.parse()
	if err != nil {
		return false
	}
	value, ok := metrics[c.metric]
	if !ok {
		return false
	}
	switch c.op {
	case ">":
		return value > c.threshold
	case "<":
		return value < c.threshold
	case ">=":
		return value >= c.threshold
	case "<=":
		return value <= c.threshold
	case "==":
		return value == c.threshold
	case "!=":
		return value != c.threshold
	}
	return false
}

// FormatMessage renders the alert with the metric's current value.
func (r Rule) FormatMessage(metrics map[string]float64) string {
	msg := fmt.Sprintf("[%s] %s: %s", strings.ToUpper(r.Severity), r.Name, r.Message)
	if c, err := r.parse(); err == nil {
		if v, ok := metrics[c.metric]; ok {
			msg += fmt.Sprintf(" (%s=%s)", c.metric, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return msg
}

// DefaultRules watch for a stuck trader and for the daily loss halt.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "cycle_failures",
			Expr:     MetricCycleFailures + " >= 3",
			Severity: "critical",
			Message:  "trader cycles keep failing",
		},
		{
			Name:     "stale_bars",
			Expr:     MetricBarAgeMinutes + " > 480",
			For:      30 * time.Minute,
			Severity: "warning",
			Message:  "bar cache has not refreshed",
		},
		{
			Name:     "daily_loss",
			Expr:     MetricDailyLossPct + " >= 3",
			Severity: "critical",
			Message:  "daily loss limit reached, new entries are blocked",
		},
	}
}
