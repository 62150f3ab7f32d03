// Package accnum generates bank account numbers of the form ACC-NNNNNNNNNN.
package accnum

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

const (
	prefix      = "ACC-"
	digits      = 10_000_000_000
	maxAttempts = 5
)

// ExistsFunc reports whether an account number is already taken.
type ExistsFunc func(ctx context.Context, number string) (bool, error)

// Generate returns a fresh account number, retrying on collision.
func Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		number, err := random()
		if err != nil {
			return "", err
		}

		taken, err := exists(ctx, number)
		if err != nil {
			return "", fmt.Errorf("failed to check account number: %w", err)
		}
		if !taken {
			return number, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique account number after %d attempts", maxAttempts)
}

func random() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	n := binary.BigEndian.Uint64(buf[:]) % digits
	return fmt.Sprintf("%s%010d", prefix, n), nil
}
