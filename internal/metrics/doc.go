/*
Package metrics provides Prometheus instrumentation for the run engine.

Collector registers counters, histograms and gauges via promauto and
records run outcomes, retry attempts, cache hit rates and dropped
lifecycle events, all namespaced and labelled by task name so dashboards
can slice per task.
*/
package metrics
