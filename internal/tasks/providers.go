package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/authshift/authshift/internal/ids"
	"github.com/authshift/authshift/internal/models"
	"github.com/authshift/authshift/internal/repositories"
	"github.com/authshift/authshift/internal/shared"
)

// ResolveProviderMappings resolves operator-supplied mappings of the form
// "<source-provider-name>:<target-provider-identifier>" against the target
// store. The identifier side may use either encoding.
//
// The resulting map is built once, before any user is processed, and is only
// read afterwards.
func ResolveProviderMappings(ctx context.Context, mappings []string, target *repositories.TargetStore) (map[string]models.UpstreamOAuthProvider, error) {
	resolved := make(map[string]models.UpstreamOAuthProvider, len(mappings))

	for _, mapping := range mappings {
		name, rawID, found := strings.Cut(mapping, ":")
		if !found || name == "" || rawID == "" {
			return nil, fmt.Errorf("%w: %q (want <source-provider>:<target-provider-id>)", shared.ErrInvalidMapping, mapping)
		}

		id, err := ids.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", shared.ErrInvalidMapping, mapping, err)
		}

		provider, err := target.UpstreamProvider(ctx, id)
		if err != nil {
			return nil, err
		}
		if provider == nil {
			return nil, fmt.Errorf("%w: %s (mapped from %q)", shared.ErrUnknownProvider, id, name)
		}

		resolved[name] = *provider
	}

	return resolved, nil
}
