// Package prometheus renders stepauth metrics in Prometheus text
// exposition format.
//
// [NewExporter] accepts a [stepauth.Engine] and exposes an [http.Handler]
// that serves every engine counter and histogram. Counter names are
// prefixed stepauth_*_total; histograms are stepauth_*_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount
//     the Handler.
//   - Mutate engine state.
package prometheus
