// Package tasks orchestrates the one-shot account migration between the two
// stores with real-time progress reporting.
//
// # Core Operations
//
// The [Engine] runs the whole migration:
//
//  1. Pre-flight gate: refuses to run against a non-empty target user table
//  2. Provider mapping resolution: operator-supplied name:identifier pairs
//     resolved once against the target store before any user is processed
//  3. Per-user pipeline: extract dependent rows, transform them into typed
//     target insertions (parent before child), then commit them inside one
//     transaction — or record warnings/fatals per the run policy
//  4. Summary: a run-scoped [Report] accumulates counts and warning text and
//     decides the overall outcome
//
// Users are processed strictly one at a time; at most one target transaction
// is ever open. In dry-run mode all extraction and transformation runs but
// nothing is written, and per-user problems are accumulated instead of
// terminating the run.
//
// # Progress Reporting
//
// Operations send [ProgressUpdate] values on a caller-supplied channel using
// select with default, so reporting never blocks migration work.
package tasks
