// Package metrics records build metrics for docpipe.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so call sites never check for nil:
//
//	type Pipeline struct {
//	    recorder metrics.Recorder
//	}
//
//	p.recorder.ObserveStageDuration("compile", time.Since(start))
//
// PrometheusRecorder registers its collectors on a private registry. docpipe
// runs as a one-shot command, so instead of serving /metrics the registry is
// written to a node_exporter textfile (metrics.textfile in the config) when a
// build ends.
package metrics
