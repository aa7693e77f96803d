package metrics

import (
	"fmt"

	"github.com/kilianp07/battopt/core/factory"
)

// Config lists the sinks receiving run metrics.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}

// Validate rejects sinks without a type and repeated sink types, which would
// register the same collectors twice.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Sinks))
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("metrics sink %d: missing type", i)
		}
		if seen[s.Type] {
			return fmt.Errorf("metrics sink %q configured twice", s.Type)
		}
		seen[s.Type] = true
	}
	return nil
}

var sinkRegistry = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink adds a metrics sink factory identified by name.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// SinkTypes lists the registered sink names.
func SinkTypes() []string { return sinkRegistry.Types() }

// NewMetricsSink creates a MetricsSink from the provided configuration. No
// configuration yields a NopSink, several yield a MultiSink.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	sinks := make([]MetricsSink, len(cfgs))
	for i, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			return nil, fmt.Errorf("metrics sink %d (%s): %w", i, c.Type, err)
		}
		sinks[i] = s
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return NewMultiSink(sinks...), nil
}
