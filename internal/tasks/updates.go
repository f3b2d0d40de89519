package tasks

import "fmt"

// ProgressUpdate represents a progress event during a migration run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase, 0 when unknown
	Message string // Human-readable message for display
}

// Operation phase enumeration
type Phase int

const (
	CheckTarget Phase = iota
	ResolveProviders
	MigrateUsers
	Summarize
)

func (p Phase) String() string {
	switch p {
	case CheckTarget:
		return "check_target"
	case ResolveProviders:
		return "resolve_providers"
	case MigrateUsers:
		return "migrate_users"
	case Summarize:
		return "summarize"
	default:
		return ""
	}
}

func checkTargetUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckTarget,
		Step:    1,
		Total:   1,
		Message: "Checking target store is empty...",
	}
}

func resolveProvidersUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveProviders,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Resolving %d provider mapping(s)...", total),
	}
}

func migrateUserUpdate(step int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MigrateUsers,
		Step:    step,
		Message: fmt.Sprintf("[%d] %s", step, name),
	}
}

func skipUserUpdate(step int, name string, warnings int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MigrateUsers,
		Step:    step,
		Message: fmt.Sprintf("[%d] ✗ %s (%d warning(s), left un-committed)", step, name, warnings),
	}
}

func summaryUpdate(migrated, seen int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Summarize,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Migrated %d of %d users", migrated, seen),
	}
}
