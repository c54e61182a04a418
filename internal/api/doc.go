// Package api hosts the control plane used in serve mode. Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /runs to start a pass (202, or 409 while one is running).
//   - GET /runs/last and /runs/status to inspect runs.
package api
