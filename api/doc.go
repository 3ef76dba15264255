// Package api exposes an Engine over HTTP for operators and collaborating services.
//
// Routes live under /api. Errors use a single envelope:
//
//	{"error": {"code": "duplicate", "message": "...", "details": {...}}}
//
// Prometheus metrics are served at /metrics and liveness at /health.
package api
