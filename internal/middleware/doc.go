// Package middleware provides HTTP middleware for the media board API.
//
// It includes:
//   - Request ids, taken from X-Request-ID or generated
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
package middleware
