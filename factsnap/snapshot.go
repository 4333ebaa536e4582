// Package factsnap implements the two snapshot repository shapes:
// ProjectionRepository for class-keyed SnapshotProjections, and
// AggregateRepository for (class, aggregate-id)-keyed Aggregates. Both
// read and write through a pluggable, opaque-byte Cache.
package factsnap

import (
	"fmt"
	"strings"
)

// Snapshot is a serialized projection state pinned to a cursor.
type Snapshot struct {
	Key        string
	LastFact   string // the cursor's fact.ID, stored as a plain string
	Bytes      []byte
	Compressed bool
}

// BuildKey derives the stable, observable snapshot key for a class and
// schema version, mixing in the aggregate id when one is present. This is
// the layout "<class>:<schemaVersion>" for a
// SnapshotProjection, with ":<aggregate-id>" appended for an Aggregate.
// Key generation is injective over (classID, schemaVersion, aggregateID):
// classID never contains a colon (Go import paths/type names don't), so
// the three components cannot be confused for one another.
func BuildKey(classID string, schemaVersion int, aggregateID *string) string {
	var b strings.Builder
	b.WriteString(classID)
	b.WriteByte(':')
	fmt.Fprintf(&b, "%d", schemaVersion)
	if aggregateID != nil {
		b.WriteByte(':')
		b.WriteString(*aggregateID)
	}
	return b.String()
}
