// Package metrics records assembly session metrics.
//
// Components receive a Recorder; NoopRecorder is the default so call sites never
// check for nil. PrometheusRecorder registers its collectors on a private registry
// and can export them as a node_exporter textfile after a session.
package metrics
