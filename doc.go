// Package main hosts the insider filings crawler entrypoint.
//
// Architecture overview:
//   - Scheduler: internal/scheduler walks an explicit cursor one calendar day at a time. A day after yesterday
//     (America/New_York) is waited on; a day with a checkpoint is persisted straight from it; otherwise the daily
//     master index is fetched, filtered to the configured form types and crawled in paced sub-batches.
//   - Fetch pipeline: internal/index fetches and decodes the gzip or deflate index; internal/worker runs up to
//     batch-size Colly fetches concurrently, extracts non-derivative transactions with internal/extract and appends
//     failing entries to the dead-letter log.
//   - Pacing: internal/policy/ratelimit hands out one token per second, so at most ten documents start per second.
//   - Persistence: every crawled day is checkpointed to JSON (local disk or GCS) before internal/persist resolves
//     issuer, individual, form and transaction rows through the identifier caches (memory or Redis) into Postgres.
//   - Plumbing: Viper config, zap logs carrying run_id and date, Prometheus metrics, a chi status server and
//     optional Pub/Sub day reports.
//
// Quick checklist:
//   - Set INSIDER_EDGAR_USER_AGENT to a name and contact address; EDGAR rejects anonymous clients.
//   - Set INSIDER_DB_DSN and run `insider-filings-crawler migrate` once.
//   - Run `insider-filings-crawler crawl --from 2025-01-02` to follow the feed, adding --to for a bounded backfill.
//   - Re-running a day is safe: checkpoints short-circuit the network and inserts skip existing rows.
package main
