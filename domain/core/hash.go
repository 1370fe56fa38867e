package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Signature identifies a rule across discovery stages independent of its ID.
// It is the hex sha256 of type, lower-cased primary column and description
// joined by NUL bytes.
type Signature string

func (s Signature) String() string { return string(s) }

// Equals checks if two signatures are equal
func (s Signature) Equals(other Signature) bool { return s == other }

// ComputeSignature hashes the identity tuple {type, primary column, description}.
// The column name is compared case-insensitively, matching column lookup.
func ComputeSignature(ruleType, primaryColumn, description string) Signature {
	h := sha256.New()
	h.Write([]byte(ruleType))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(primaryColumn)))
	h.Write([]byte{0})
	h.Write([]byte(description))
	return Signature(hex.EncodeToString(h.Sum(nil)))
}
