// Package api hosts the status server that runs alongside a crawl. Notable
// routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the live state of the running engine.
//   - GET /v1/runs and /v1/runs/{run_id} for the run ledger.
package api
