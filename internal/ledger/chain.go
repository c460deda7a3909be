package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"
)

// GenesisHash is the fixed previous-hash sentinel for the very first entry.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// fieldSeparator keeps adjacent hash input fields from bleeding into each
// other ("ab"+"c" vs "a"+"bc").
const fieldSeparator = "|"

// computeHash derives the tamper-evident digest for an entry from its content
// and the previous entry's hash. The full 64-hex SHA-256 digest is stored;
// any display truncation is a presentation concern only.
func computeHash(e *Entry) string {
	h := sha256.New()
	io.WriteString(h, string(e.EventType))
	io.WriteString(h, fieldSeparator)
	if e.ActorID != nil {
		io.WriteString(h, e.ActorID.String())
	}
	io.WriteString(h, fieldSeparator)
	io.WriteString(h, e.Description)
	io.WriteString(h, fieldSeparator)
	io.WriteString(h, e.OccurredAt.UTC().Format(time.RFC3339Nano))
	io.WriteString(h, fieldSeparator)
	io.WriteString(h, e.PreviousHash)
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeTime clamps a timestamp to microsecond precision in UTC so that a
// hash computed before persistence still verifies after a round trip through
// postgres, which stores microseconds.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
