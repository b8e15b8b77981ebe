package idgen

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// RequestID returns a UUIDv7 identifier for a request that arrived without
// one. If UUIDv7 generation fails, it falls back to a random UUIDv4.
func RequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Artifact returns a filename for a submission artifact. ULIDs combine a
// millisecond timestamp with random entropy, so names stay unique even under
// rapid repeated submissions.
func Artifact(prefix, ext string) string {
	return prefix + "-" + ulid.Make().String() + ext
}
