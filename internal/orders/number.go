package orders

import (
	"crypto/rand"
	"fmt"
	"time"
)

const (
	orderNumberPrefix    = "ORD"
	orderNumberRandomLen = 6
	base36Alphabet       = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// GenerateOrderNumber returns a candidate number of the form
// ORD-YYYYMMDD-XXXXXX where the suffix is random base36. Uniqueness is
// enforced by the orders table; callers retry on collision.
func GenerateOrderNumber(now time.Time) (string, error) {
	buf := make([]byte, orderNumberRandomLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = base36Alphabet[int(b)%len(base36Alphabet)]
	}
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, now.UTC().Format("20060102"), buf), nil
}
