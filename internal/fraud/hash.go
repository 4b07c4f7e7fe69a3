package fraud

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// HashAddress derives the Keccak-256 digest used to key suspicious-activity
// audit rows, so repeat bad actors can be correlated without ever storing a
// raw address in the audit trail.
func HashAddress(address string) string {
	digest := sha3.NewLegacyKeccak256()
	digest.Write([]byte(address))
	return hex.EncodeToString(digest.Sum(nil))
}
