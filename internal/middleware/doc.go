// Package middleware provides the HTTP middleware of the artwork API:
// W3C Extended Log Format request logging, Prometheus request metrics
// labelled by route template, and gzip compression of JSON responses.
package middleware
