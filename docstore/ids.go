// ABOUTME: ID generation for documents and append-only log entries
// ABOUTME: UUIDs for entities, ULIDs where creation order should sort
package docstore

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID returns a random entity id.
func NewID() string {
	return uuid.NewString()
}

// NewLogID returns a lexically sortable id for append-only entries
// (activities, notes, stage history), so entries order by creation time.
func NewLogID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String()
}
