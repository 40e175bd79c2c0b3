package metrics

// Package metrics defines the events emitted after every planning run and the
// sinks recording them. Sinks like PromSink and InfluxSink live in
// infra/metrics and register themselves by name; NewMetricsSink returns a
// MultiSink automatically when several sinks are configured.
