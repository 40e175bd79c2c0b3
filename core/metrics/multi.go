package metrics

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlanRun forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordPlanRun(ev PlanRunEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordPlanRun(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordSiteVolumes forwards site volumes when supported by the sink.
func (m *MultiSink) RecordSiteVolumes(v []SiteVolume) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SiteVolumeRecorder); ok {
			if err := rec.RecordSiteVolumes(v); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordOrderPublish forwards order events when supported by the sink.
func (m *MultiSink) RecordOrderPublish(ev OrderPublishEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(OrderPublishRecorder); ok {
			if err := rec.RecordOrderPublish(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
