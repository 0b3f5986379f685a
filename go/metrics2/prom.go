// Package metrics2 is a thin layer over the Prometheus client that lets callers look up metrics
// by name and tags without registering them up front.
package metrics2

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"go.skia.org/screendiff/go/sklog"
)

var (
	// invalidChar is used to force metric and tag names to conform to Prometheus's restrictions.
	invalidChar = regexp.MustCompile("([^a-zA-Z0-9_:])")

	defaultClient = NewClient(prometheus.DefaultRegisterer)
)

func clean(s string) string {
	return invalidChar.ReplaceAllLiteralString(s, "_")
}

// Counter is a monotonically increasing metric.
type Counter interface {
	// Inc adds i, which must not be negative, to the counter.
	Inc(i int64)
	// Get returns the current value.
	Get() int64
}

// Float64SummaryMetric tracks the distribution of a float64 value.
type Float64SummaryMetric interface {
	Observe(v float64)
}

// promCounter implements the Counter interface.
type promCounter struct {
	// i tracks the value of the counter, because prometheus client lib doesn't
	// support get on Counter values.
	i       int64
	counter prometheus.Counter
}

func (c *promCounter) Inc(i int64) {
	atomic.AddInt64(&c.i, i)
	c.counter.Add(float64(i))
}

func (c *promCounter) Get() int64 {
	return atomic.LoadInt64(&c.i)
}

type promSummary struct {
	summary prometheus.Observer
}

func (s *promSummary) Observe(v float64) {
	s.summary.Observe(v)
}

// Client hands out metrics registered with a single prometheus.Registerer.
type Client struct {
	registerer prometheus.Registerer

	mutex       sync.Mutex
	counterVecs map[string]*prometheus.CounterVec
	counters    map[string]*promCounter
	summaryVecs map[string]*prometheus.SummaryVec
	summaries   map[string]*promSummary
}

// NewClient returns a Client that registers its metrics with r.
func NewClient(r prometheus.Registerer) *Client {
	return &Client{
		registerer:  r,
		counterVecs: map[string]*prometheus.CounterVec{},
		counters:    map[string]*promCounter{},
		summaryVecs: map[string]*prometheus.SummaryVec{},
		summaries:   map[string]*promSummary{},
	}
}

// commonGet returns the cleaned measurement name and tags, the sorted tag keys, a key that
// identifies the individual metric and a key that identifies its vector.
func commonGet(measurement string, tags ...map[string]string) (string, map[string]string, []string, string, string) {
	measurement = clean(measurement)
	cleanTags := map[string]string{}
	for _, t := range tags {
		for k, v := range t {
			cleanTags[clean(k)] = v
		}
	}
	keys := make([]string, 0, len(cleanTags))
	for k := range cleanTags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	metricKeySrc := []string{measurement}
	for _, key := range keys {
		metricKeySrc = append(metricKeySrc, key, cleanTags[key])
	}
	return measurement, cleanTags, keys, strings.Join(metricKeySrc, "-"), fmt.Sprintf("%s %v", measurement, keys)
}

// GetCounter returns the counter with the given name and tags, creating it if needed.
func (c *Client) GetCounter(name string, tags ...map[string]string) Counter {
	measurement, cleanTags, keys, key, vecKey := commonGet(name, tags...)

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if ret, ok := c.counters[key]; ok {
		return ret
	}
	vec, ok := c.counterVecs[vecKey]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: measurement,
			Help: measurement,
		}, keys)
		if err := c.registerer.Register(vec); err != nil {
			sklog.Fatalf("Failed to register %q: %s", measurement, err)
		}
		c.counterVecs[vecKey] = vec
	}
	counter, err := vec.GetMetricWith(prometheus.Labels(cleanTags))
	if err != nil {
		sklog.Fatalf("Failed to get counter: %s", err)
	}
	ret := &promCounter{counter: counter}
	c.counters[key] = ret
	return ret
}

// GetFloat64SummaryMetric returns the summary with the given name and tags, creating it if needed.
func (c *Client) GetFloat64SummaryMetric(name string, tags ...map[string]string) Float64SummaryMetric {
	measurement, cleanTags, keys, key, vecKey := commonGet(name, tags...)

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if ret, ok := c.summaries[key]; ok {
		return ret
	}
	vec, ok := c.summaryVecs[vecKey]
	if !ok {
		vec = prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       measurement,
			Help:       measurement,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, keys)
		if err := c.registerer.Register(vec); err != nil {
			sklog.Fatalf("Failed to register %q: %s", measurement, err)
		}
		c.summaryVecs[vecKey] = vec
	}
	observer, err := vec.GetMetricWith(prometheus.Labels(cleanTags))
	if err != nil {
		sklog.Fatalf("Failed to get summary: %s", err)
	}
	ret := &promSummary{summary: observer}
	c.summaries[key] = ret
	return ret
}

// GetCounter returns a counter from the default client.
func GetCounter(name string, tags ...map[string]string) Counter {
	return defaultClient.GetCounter(name, tags...)
}

// GetFloat64SummaryMetric returns a summary from the default client.
func GetFloat64SummaryMetric(name string, tags ...map[string]string) Float64SummaryMetric {
	return defaultClient.GetFloat64SummaryMetric(name, tags...)
}
