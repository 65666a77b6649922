// Package id generates sortable unique identifiers for domain records.
package id

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a lowercase ULID string.
//
// ULIDs sort lexicographically by creation time, which keeps submission and
// trace records naturally ordered in storage and logs.
func NewID() (string, error) {
	value, err := ulid.New(ulid.Timestamp(time.Now().UTC()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return strings.ToLower(value.String()), nil
}
