// Package wallet holds the typed ledger account identifier used for sellers and winners.
//
// Identity text in the surrounding schema (bidder ids, creator fields) may or may not
// carry a ledger account id. Parse is the single place that decides.
package wallet

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNotAccountID is returned when a value is not shaped like a ledger account id
var ErrNotAccountID = errors.New("not a ledger account id")

// shard.realm.num with an optional 5 letter checksum suffix
var accountIDPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(?:-([a-z]{5}))?$`)

// AccountID is a canonical ledger account identifier, e.g. "0.0.4512".
// The checksum suffix is dropped on parse.
type AccountID string

// Parse validates raw and returns its canonical form
func Parse(raw string) (AccountID, error) {
	value := strings.TrimSpace(raw)
	m := accountIDPattern.FindStringSubmatch(value)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrNotAccountID, raw)
	}
	return AccountID(fmt.Sprintf("%s.%s.%s", m[1], m[2], m[3])), nil
}

// IsAccountID reports whether raw is shaped like a ledger account id
func IsAccountID(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}

func (a AccountID) String() string {
	return string(a)
}

// IsZero returns true for the empty identifier
func (a AccountID) IsZero() bool {
	return a == ""
}
