// Package prometheus exposes authclient metrics as a client_golang Collector.
//
// Counter names are prefixed authclient_ and end in _total; the one histogram is
// authclient_refresh_latency_seconds. The collector reads a fresh snapshot on every
// scrape. Register it on your own registry, or use [Exporter.Handler] for a private one.
package prometheus
