package certificates

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// numberPrefix is the issuing-office code on every certificate number.
const numberPrefix = "SLC"

// yearCode concatenates the last two digits of the year and the year
// after it, e.g. 2026 -> "2627".
func yearCode(now time.Time) string {
	y := now.Year()
	return fmt.Sprintf("%02d%02d", y%100, (y+1)%100)
}

// formatNumber renders SLC/{code}/{seq:04d}.
func formatNumber(code string, seq int64) string {
	return fmt.Sprintf("%s/%s/%04d", numberPrefix, code, seq)
}

// newVerificationKey returns a random opaque key handed to the requester
// exactly once; only its hash is stored.
func newVerificationKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
