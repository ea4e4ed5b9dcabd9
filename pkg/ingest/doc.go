// Package ingest runs the ingestion pipeline for a date range.
//
// A run partitions the range into one query per day, clears the stored
// events of that window, discovers the upstream endpoints, then runs one
// pipeline per day concurrently:
//
//	fetch (retrying across endpoints) → normalize → persist
//
// Example usage:
//
//	orch, err := ingest.New(ingest.Deps{...})
//	report, err := orch.Run(ctx, from, to)
//
// The orchestrator:
//   - Starts endpoint discovery concurrently with the pipelines
//   - Bounds per-host concurrency through the fetcher's host gate
//   - Never lets one failed day cancel its siblings
//   - Re-confirms the uniqueness index once every pipeline has finished
//   - Records the run in the ledger when one is configured
//
// Failed days are reported, not retried: re-run the range to repair them.
package ingest
