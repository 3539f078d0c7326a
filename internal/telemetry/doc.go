// Package telemetry wraps OpenTelemetry SDK initialization, providing a
// single place to configure the TracerProvider and MeterProvider. When
// telemetry is disabled a noop implementation is used and no external
// service is contacted.
package telemetry
