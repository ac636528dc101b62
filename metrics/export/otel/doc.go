// Package otel registers authclient metrics as OpenTelemetry observable instruments.
//
// Each counter becomes an Int64ObservableCounter. The latency histogram is flattened into
// one cumulative Int64ObservableGauge per bucket plus a count gauge. One callback reads a
// snapshot per collection. Callers own the MeterProvider.
package otel
