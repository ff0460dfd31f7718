/*
Package observability turns formbot lifecycle events into logs and Prometheus metrics.

Metrics registers the collectors and exposes them as domain.LifecycleHooks; LogHooks
does the same for a slog.Logger. Combine fans one event out to several hook sets.
*/
package observability
