// package repositories provides the persistence layer for both stores.
//
// SourceStore issues read-only queries against the legacy account database
// and exposes the eligible-user cursor with its two backing strategies
// (row streaming vs full materialization). TargetStore issues the pre-flight
// count, provider lookups, and the per-user transactional insertions.
package repositories
