// package ids derives and parses the dual-encoded identifiers assigned to
// every migrated record.
//
// An identifier is a single 128-bit value with two canonical textual
// encodings: a lexically time-sortable encoding (ULID) used in diagnostics,
// and the standard dashed UUID encoding used in database columns. Both
// encodings are always derivable from each other because they share the same
// underlying bytes.
package ids

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/authshift/authshift/internal/shared"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ID is a 128-bit identifier seeded from an event timestamp.
type ID struct {
	value ulid.ULID
}

// New derives a fresh identifier seeded at the given time.
//
// The timestamp component makes the sortable encoding order by event time;
// the remaining bits are random so two identifiers derived at the same
// instant never collide.
func New(t time.Time) ID {
	return ID{value: ulid.MustNew(ulid.Timestamp(t.UTC()), rand.Reader)}
}

// Parse normalizes an operator-supplied identifier in either encoding.
//
// Accepts the sortable encoding, the dashed UUID encoding, and the
// non-canonical UUID variants (raw hex, braced, urn prefixed) understood by
// [uuid.Parse]. Returns [shared.ErrMalformedID] when none match.
func Parse(text string) (ID, error) {
	if v, err := ulid.ParseStrict(text); err == nil {
		return ID{value: v}, nil
	}

	if u, err := uuid.Parse(text); err == nil {
		return ID{value: ulid.ULID(u)}, nil
	}

	return ID{}, fmt.Errorf("%w: %q", shared.ErrMalformedID, text)
}

// String returns the sortable encoding.
func (id ID) String() string {
	return id.value.String()
}

// UUID returns the identifier as a [uuid.UUID].
func (id ID) UUID() uuid.UUID {
	return uuid.UUID(id.value)
}

// UUIDString returns the dashed UUID encoding, used for database columns.
func (id ID) UUIDString() string {
	return id.UUID().String()
}

// Timestamp returns the event time the identifier was seeded with,
// truncated to millisecond precision.
func (id ID) Timestamp() time.Time {
	return ulid.Time(id.value.Time()).UTC()
}

// IsZero reports whether the identifier is the zero value.
func (id ID) IsZero() bool {
	return id.value == ulid.ULID{}
}
