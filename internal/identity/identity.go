// Package identity maps records into the local integer key space.
//
// Remote documents are addressed by opaque strings; local rows by int64. Both
// directions go through the same FNV-1a hash so a remote document always lands
// on the same local key. Records created while the remote store is unreachable
// get a key derived from their business identity instead, so retried writes of
// the same logical record collapse onto one row.
//
// Distinct inputs may collide. That is a known limitation of the mapping and
// is not detected here.
package identity

import (
	"hash/fnv"
	"math"
	"strconv"

	"github.com/matheus3301/jobboard/internal/model"
)

// sep keeps concatenated fields from running into each other ("1"+"2x" vs "12"+"x").
const sep = "\x00"

// RemoteKey returns the local key for a remote document id.
func RemoteKey(remoteID string) int64 {
	return sum(remoteID)
}

// JobKey returns the offline key for a job's business identity.
func JobKey(id model.JobIdentity) int64 {
	return sum(strconv.FormatInt(id.EmployerID, 10), id.Title, strconv.FormatInt(id.CreatedAt, 10))
}

// UserKey returns the offline key for a user, from normalized email and username.
func UserKey(email, username string) int64 {
	return sum(model.Normalize(email), model.Normalize(username))
}

// MessageKey returns the offline key for a message.
func MessageKey(m model.Message) int64 {
	return sum(
		strconv.FormatInt(m.SenderID, 10),
		strconv.FormatInt(m.ReceiverID, 10),
		m.Text,
		strconv.FormatInt(m.Timestamp, 10),
	)
}

// sum hashes parts into a positive, non-zero int64. Zero is reserved for
// "no key assigned yet".
func sum(parts ...string) int64 {
	h := fnv.New64a()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.Write([]byte(sep))
		}
		_, _ = h.Write([]byte(p))
	}
	k := int64(h.Sum64() & math.MaxInt64)
	if k == 0 {
		return 1
	}
	return k
}
