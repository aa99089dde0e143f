package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"logossophia/pkg/domain"
)

// AnonymousUser is the user part of fingerprints computed without a signed-in user.
const AnonymousUser = "anon"

// userPrefix keeps signed-in IDs out of the anonymous partition.
const userPrefix = "u-"

const keyPrefix = "thought_"

// Fingerprint identifies one cacheable thought: a date, a preference set and a user.
type Fingerprint string

func (f Fingerprint) String() string {
	return string(f)
}

// ComputeFingerprint derives the cache key for (date, prefs, userID).
// Preference labels are compared as sets: reordering or repeating a label
// within a category yields the same fingerprint, changing membership does not.
// An empty userID maps to the anonymous partition; any other ID is prefixed
// so no user, not even one with ID "anon", can land in it.
func ComputeFingerprint(date string, prefs domain.Preferences, userID string) Fingerprint {
	userPart := AnonymousUser
	if id := strings.TrimSpace(userID); id != "" {
		userPart = userPrefix + id
	}
	return Fingerprint(keyPrefix + date + "_" + preferenceHash(prefs) + "_" + userPart)
}

func preferenceHash(prefs domain.Preferences) string {
	// Normalized slices are non-nil and sorted, so the encoding is canonical.
	canonical, _ := json.Marshal(prefs.Normalize())
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:16])
}
