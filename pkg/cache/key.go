package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

const (
	// keyNamespace prefixes every cache key.
	keyNamespace = "hub"

	// DefaultRange is the range token used when no range is supplied
	// (a one-year window).
	DefaultRange = "1Y"

	// allFieldsToken is the sentinel for "no field subset requested".
	allFieldsToken = "all"
)

// Key identifies one logical cached response. Two keys built from the same
// logical parameters produce byte-identical strings regardless of the order
// fields were supplied in.
type Key struct {
	// Class is the resource class (must match a policy registry entry,
	// unknown classes fall back to the default policy).
	Class string

	// PrincipalID identifies the user or account the response belongs to.
	PrincipalID string

	// Range is an optional time-range token (e.g. "3M", "1Y", "ALL").
	// Empty means DefaultRange.
	Range string

	// Fields is an optional field-subset selector. Order does not matter;
	// empty means all fields.
	Fields []string
}

// String generates the deterministic cache key string.
// Format: hub:<class>:<principal>:<range>:<fieldsToken>
//
// Example:
//
//	hub:portfolio-performance:user-42:1Y:all
func (k Key) String() string {
	rangeToken := k.Range
	if rangeToken == "" {
		rangeToken = DefaultRange
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s",
		keyNamespace, k.Class, k.PrincipalID, rangeToken, fieldsToken(k.Fields))
}

// fieldsToken hashes a field-subset list into a stable token. The list is
// sorted first so supply order cannot change the token. An empty list maps
// to the fixed "all fields" sentinel.
func fieldsToken(fields []string) string {
	if len(fields) == 0 {
		return allFieldsToken
	}

	sorted := make([]string, len(fields))
	copy(sorted, fields)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:8])
}
