// Package telemetry wraps OpenTelemetry SDK initialization for the run
// engine: OTLP gRPC trace and metric exporters, or noop providers when
// telemetry is disabled.
package telemetry
