package tasks

import "fmt"

// Report is the run-scoped accumulator merged into the final summary. It is
// owned by a single Engine.Run invocation; there is no global mutable state.
type Report struct {
	UsersSeen     int      // eligible users considered
	UsersMigrated int      // users fully committed (or fully validated in dry-run)
	UsersSkipped  int      // users left un-committed in dry-run because of warnings
	Warnings      []string // literal warning text, replayed at run end
	Fatals        []string // fatal condition text
}

// Warnf records a per-row warning against the current user.
func (r *Report) Warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Fatalf records a whole-run fatal condition.
func (r *Report) Fatalf(format string, args ...any) {
	r.Fatals = append(r.Fatals, fmt.Sprintf(format, args...))
}

// WarningCount returns the number of accumulated warnings.
func (r *Report) WarningCount() int { return len(r.Warnings) }

// FatalCount returns the number of accumulated fatal conditions.
func (r *Report) FatalCount() int { return len(r.Fatals) }

// Failed reports the overall run outcome. Warnings fail the run even when,
// in dry-run, they were not escalated to fatals: a warned user was not
// migratable as-is.
func (r *Report) Failed() bool {
	return r.FatalCount() > 0 || r.WarningCount() > 0
}
