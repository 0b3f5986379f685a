// timer makes timing operations easier.
package timer

import (
	"time"

	"go.skia.org/screendiff/go/metrics2"
	"go.skia.org/screendiff/go/sklog"
)

// Timer is for timing events. When finished the duration is reported
// via sklog, and optionally recorded in a summary metric.
//
// The standard way to use Timer is at the top of the func you
// want to measure:
//
//	defer timer.New("reference load").Stop()
type Timer struct {
	Begin   time.Time
	Name    string
	summary metrics2.Float64SummaryMetric
}

// New returns a started Timer that logs its duration on Stop.
func New(name string) *Timer {
	return &Timer{
		Begin: time.Now(),
		Name:  name,
	}
}

// NewWithSummary returns a started Timer that also records its duration, in seconds, in m.
func NewWithSummary(name string, m metrics2.Float64SummaryMetric) *Timer {
	t := New(name)
	t.summary = m
	return t
}

// Stop logs and returns the elapsed time.
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.Begin)
	if t.summary != nil {
		t.summary.Observe(d.Seconds())
	}
	sklog.Debugf("%s %v", t.Name, d)
	return d
}
