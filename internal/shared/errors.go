package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig   = fmt.Errorf("configuration not found")
	ErrInvalidConfig   = fmt.Errorf("invalid configuration")
	ErrInvalidMapping  = fmt.Errorf("invalid provider mapping")
	ErrUnknownProvider = fmt.Errorf("unknown upstream provider")
	ErrMalformedID     = fmt.Errorf("malformed identifier")

	// Run-level errors
	ErrTargetNotEmpty     = fmt.Errorf("target store already contains users")
	ErrGuestUser          = fmt.Errorf("guest users cannot be migrated")
	ErrUnresolvedWarnings = fmt.Errorf("unresolved migration warnings")
	ErrMigrationFailed    = fmt.Errorf("migration failed")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
