package ids

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/authshift/authshift/internal/shared"
)

func TestNew(t *testing.T) {
	t.Run("Duality", func(t *testing.T) {
		seed := time.Unix(1700000000, 0)
		id := New(seed)

		fromSortable, err := Parse(id.String())
		if err != nil {
			t.Fatalf("failed to parse sortable encoding: %v", err)
		}
		fromUUID, err := Parse(id.UUIDString())
		if err != nil {
			t.Fatalf("failed to parse uuid encoding: %v", err)
		}

		if fromSortable != id {
			t.Errorf("sortable round trip mismatch: got %s, want %s", fromSortable, id)
		}
		if fromUUID != id {
			t.Errorf("uuid round trip mismatch: got %s, want %s", fromUUID, id)
		}
		if fromSortable.UUIDString() != fromUUID.UUIDString() {
			t.Errorf("encodings disagree: %s vs %s", fromSortable.UUIDString(), fromUUID.UUIDString())
		}
	})

	t.Run("SortsByTimestamp", func(t *testing.T) {
		earlier := New(time.Unix(1600000000, 0))
		later := New(time.Unix(1700000000, 0))

		if earlier.String() >= later.String() {
			t.Errorf("expected %s to sort before %s", earlier, later)
		}
	})

	t.Run("SeedTimestampPreserved", func(t *testing.T) {
		seed := time.UnixMilli(1700000000123).UTC()
		id := New(seed)

		if got := id.Timestamp(); !got.Equal(seed) {
			t.Errorf("expected seed %v, got %v", seed, got)
		}
	})

	t.Run("Unique", func(t *testing.T) {
		seed := time.Unix(1700000000, 0)
		a := New(seed)
		b := New(seed)

		if a == b {
			t.Errorf("two identifiers derived at the same instant collided: %s", a)
		}
	})
}

func TestParse(t *testing.T) {
	id := New(time.Unix(1700000000, 0))

	t.Run("RawUUIDVariant", func(t *testing.T) {
		raw := strings.ReplaceAll(id.UUIDString(), "-", "")

		parsed, err := Parse(raw)
		if err != nil {
			t.Fatalf("failed to parse raw uuid variant: %v", err)
		}
		if parsed != id {
			t.Errorf("raw variant mismatch: got %s, want %s", parsed, id)
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		for _, text := range []string{"", "not-an-id", "123", strings.Repeat("z", 26)} {
			if _, err := Parse(text); !errors.Is(err, shared.ErrMalformedID) {
				t.Errorf("expected ErrMalformedID for %q, got %v", text, err)
			}
		}
	})
}
