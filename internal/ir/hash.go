package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainCall        = "defgeneric/call/v1"
	DomainExpression  = "defgeneric/expr/v1"
	DomainDefinitions = "defgeneric/defs/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CallID computes the content-addressed ID of one dispatch frame.
// The ID is stable across replays given the same call token, generic,
// arguments and sequence number.
func CallID(callToken, generic string, args IRArray, seq int64) (string, error) {
	obj := IRObject{
		"call_token": IRString(callToken),
		"generic":    IRString(generic),
		"args":       args,
		"seq":        IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("CallID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainCall, canonical), nil
}

// ExpressionHash identifies a guard or body by its normalized source text.
// Two guards with equal hashes are treated as the same query when
// comparing restrictions.
func ExpressionHash(source string) string {
	return hashWithDomain(DomainExpression, marshalCanonicalString(source))
}

// MustCallID is like CallID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustCallID(callToken, generic string, args IRArray, seq int64) string {
	id, err := CallID(callToken, generic, args, seq)
	if err != nil {
		panic(err)
	}
	return id
}

// DefinitionsHash identifies a definition set by its canonical JSON form.
// Class, instance, generic and method order is part of the identity.
func DefinitionsHash(defs *Definitions) (string, error) {
	canonical, err := MarshalCanonical(defs.toIR())
	if err != nil {
		return "", fmt.Errorf("DefinitionsHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDefinitions, canonical), nil
}
