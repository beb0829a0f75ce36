// Package api hosts the operator HTTP server. Routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the crawl cursor and outcome counts.
//   - GET /v1/checkpoints/{date} for the transactions checkpointed for a day.
package api
