package tasks

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/goliatone/go-errors"
)

// Reset token configuration.
const (
	// ResetTokenBytes of entropy, hex encoded to twice that many characters.
	ResetTokenBytes = 12
	// DefaultResetTokenWindow is how long a reset token stays consumable.
	DefaultResetTokenWindow = 10 * time.Minute
)

// GenerateResetToken produces a random opaque token from a
// cryptographically strong source. It has no relationship to session
// tokens: consumption compares the stored value by exact equality.
func GenerateResetToken() (string, error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate reset token")
	}
	return hex.EncodeToString(buf), nil
}
