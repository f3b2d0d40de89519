// Package ui renders a read-only terminal browser over already-migrated
// target users. It is a presentation layer only: it issues no writes and
// plays no part in the migration run itself.
package ui
