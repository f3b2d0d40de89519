package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/authshift/authshift/internal/models"
	"github.com/authshift/authshift/internal/repositories"
	"github.com/authshift/authshift/internal/shared"
	"github.com/charmbracelet/log"
)

// Engine runs the one-shot migration from the source store to the target
// store. Users are processed strictly one at a time: each user's dependent
// rows are extracted, transformed into an ordered list of typed insertions,
// and committed atomically before the next user starts.
type Engine struct {
	source    *repositories.SourceStore
	target    *repositories.TargetStore
	mappings  []string
	dryRun    bool
	logger    *log.Logger
	providers map[string]models.UpstreamOAuthProvider
}

// EngineOpts contains configuration options for creating an Engine.
type EngineOpts struct {
	Source   *repositories.SourceStore
	Target   *repositories.TargetStore
	Mappings []string // raw <source-provider>:<target-provider-id> strings
	DryRun   bool
	Logger   *log.Logger
}

// NewEngine creates an Engine with the provided stores and options.
func NewEngine(opts EngineOpts) *Engine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Engine{
		source:   opts.Source,
		target:   opts.Target,
		mappings: opts.Mappings,
		dryRun:   opts.DryRun,
		logger:   opts.Logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run executes the whole migration: safety gate, provider resolution, then
// the per-user pipeline over the extraction cursor.
//
// The returned Report is always non-nil and carries every warning and fatal
// accumulated before the run ended, including runs that abort early.
func (e *Engine) Run(ctx context.Context, progress chan<- ProgressUpdate) (*Report, error) {
	report := &Report{}

	e.sendProgress(progress, checkTargetUpdate())
	count, err := e.target.CountUsers(ctx)
	if err != nil {
		return report, err
	}
	if count > 0 {
		report.Fatalf("target store already contains %d user(s)", count)
		return report, fmt.Errorf("%w: %d row(s) in users table", shared.ErrTargetNotEmpty, count)
	}

	e.sendProgress(progress, resolveProvidersUpdate(len(e.mappings)))
	e.providers, err = ResolveProviderMappings(ctx, e.mappings, e.target)
	if err != nil {
		report.Fatalf("provider mapping resolution failed: %v", err)
		return report, err
	}

	cursor, err := e.source.Users(ctx)
	if err != nil {
		return report, err
	}
	defer cursor.Close()

	for {
		user, err := cursor.Next()
		if err != nil {
			return report, err
		}
		if user == nil {
			break
		}

		report.UsersSeen++
		e.sendProgress(progress, migrateUserUpdate(report.UsersSeen, user.Name))
		e.logger.Debug("extracted user", shared.Redact(user.LogFields()...)...)

		insertions, warnings, err := e.planUser(ctx, *user)
		report.Warnings = append(report.Warnings, warnings...)

		if err != nil {
			if !isDataFatal(err) {
				// Backend failure: propagate regardless of mode.
				return report, err
			}

			report.Fatalf("%v", err)
			if e.dryRun {
				e.logger.Error("fatal condition, continuing in dry-run", "user", user.Name, "error", err)
				continue
			}
			e.flushWarnings(report)
			return report, err
		}

		if len(warnings) > 0 {
			if e.dryRun {
				report.UsersSkipped++
				e.sendProgress(progress, skipUserUpdate(report.UsersSeen, user.Name, len(warnings)))
				for _, w := range warnings {
					e.logger.Warn(w)
				}
				continue
			}

			// A warned user cannot be partially migrated; outside dry-run
			// this ends the run.
			report.Fatalf("user %s has %d unresolved warning(s)", user.Name, len(warnings))
			e.flushWarnings(report)
			return report, fmt.Errorf("%w: user %s", shared.ErrUnresolvedWarnings, user.Name)
		}

		if e.dryRun {
			report.UsersMigrated++
			continue
		}

		if err := e.target.Apply(ctx, insertions); err != nil {
			report.Fatalf("commit failed for user %s: %v", user.Name, err)
			e.flushWarnings(report)
			return report, err
		}
		report.UsersMigrated++
	}

	e.sendProgress(progress, summaryUpdate(report.UsersMigrated, report.UsersSeen))
	return report, nil
}

// planUser transforms one source user and its dependent rows into the
// ordered insertion list for a single transaction, parent rows before child
// rows. Warnings are returned even when planning ends in a fatal error so
// the report can replay them.
func (e *Engine) planUser(ctx context.Context, src models.SourceUser) ([]repositories.Insertion, []string, error) {
	if src.Guest {
		return nil, nil, fmt.Errorf("%w: %s", shared.ErrGuestUser, src.Name)
	}

	var warnings []string

	user := models.NewTargetUser(src)
	insertions := []repositories.Insertion{repositories.UserInsertion{Row: user}}
	e.logger.Debug("derived user", shared.Redact(user.LogFields()...)...)

	if src.PasswordHash.Valid && src.PasswordHash.String != "" {
		password := models.NewTargetUserPassword(user, src.PasswordHash.String)
		insertions = append(insertions, repositories.PasswordInsertion{Row: password})
		e.logger.Debug("derived password", shared.Redact(password.LogFields()...)...)
	}

	threepids, err := e.source.ThreePids(ctx, src.Name)
	if err != nil {
		return nil, warnings, err
	}
	for _, tp := range threepids {
		if tp.Medium != "email" {
			warnings = append(warnings, fmt.Sprintf("skipping %s third-party identifier for user %s: only email is migrated", tp.Medium, src.Name))
			continue
		}
		email := models.NewTargetUserEmail(user, tp)
		insertions = append(insertions, repositories.EmailInsertion{Row: email})
		e.logger.Debug("derived email", shared.Redact(email.LogFields()...)...)
	}

	externals, err := e.source.ExternalIDs(ctx, src.Name)
	if err != nil {
		return nil, warnings, err
	}
	for _, ext := range externals {
		provider, ok := e.providers[ext.AuthProvider]
		if !ok {
			return nil, warnings, fmt.Errorf("%w: %q referenced by user %s has no mapping", shared.ErrUnknownProvider, ext.AuthProvider, src.Name)
		}
		link := models.NewTargetUpstreamOAuthLink(user, provider, ext.ExternalID)
		insertions = append(insertions, repositories.LinkInsertion{Row: link})
		e.logger.Debug("derived upstream link", shared.Redact(link.LogFields()...)...)
	}

	// Deactivated accounts keep their user, email and link rows but get no
	// sessions: their tokens must not come back to life on the new service.
	if src.Deactivated {
		return insertions, warnings, nil
	}

	tokens, err := e.source.AccessTokens(ctx, src.Name)
	if err != nil {
		return nil, warnings, err
	}
	for _, tok := range tokens {
		session := models.NewTargetCompatSession(user, src, tok)
		access := models.NewTargetCompatAccessToken(session, tok.Token)
		insertions = append(insertions,
			repositories.SessionInsertion{Row: session},
			repositories.AccessTokenInsertion{Row: access},
		)
		e.logger.Debug("derived session", shared.Redact(session.LogFields()...)...)
		e.logger.Debug("derived access token", shared.Redact(access.LogFields()...)...)

		if !tok.RefreshTokenID.Valid {
			continue
		}

		refresh, err := e.source.RefreshToken(ctx, tok.RefreshTokenID.Int64)
		if err != nil {
			return nil, warnings, err
		}
		if refresh == nil {
			warnings = append(warnings, fmt.Sprintf("access token for user %s device %s references missing refresh token %d", src.Name, tok.DeviceID.String, tok.RefreshTokenID.Int64))
			continue
		}

		refreshRow := models.NewTargetCompatRefreshToken(session, access, refresh.Token)
		insertions = append(insertions, repositories.RefreshTokenInsertion{Row: refreshRow})
		e.logger.Debug("derived refresh token", shared.Redact(refreshRow.LogFields()...)...)
	}

	return insertions, warnings, nil
}

// isDataFatal reports whether the error is a data-level fatal (guest user,
// unmapped provider) that a dry run records and moves past, as opposed to a
// backend failure that always ends the run.
func isDataFatal(err error) bool {
	return errors.Is(err, shared.ErrGuestUser) || errors.Is(err, shared.ErrUnknownProvider)
}

// flushWarnings replays every accumulated warning to the log before a fatal
// return, so operators can act on them even after an abort.
func (e *Engine) flushWarnings(report *Report) {
	for _, w := range report.Warnings {
		e.logger.Warn(w)
	}
}
