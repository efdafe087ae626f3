package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address identifies a wallet participant or disbursement destination. The
// value is opaque to the core: callers are assumed to have authenticated it
// before any request reaches the wallet.
type Address [20]byte

// ZeroAddress is the empty sentinel. Slot 0 of the participant registry maps
// to it and it is never a valid participant.
var ZeroAddress = Address{}

// ParseAddress decodes a 0x-prefixed or bare hex string into an Address.
func ParseAddress(s string) (Address, error) {
	var addr Address
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("invalid address %q: want %d bytes, got %d", s, len(addr), len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// String renders the address as 0x-prefixed lowercase hex.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the address equals the zero sentinel.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Fingerprint is the deterministic hash of an operation's defining
// parameters. Confirmations from different participants aggregate under the
// same fingerprint.
type Fingerprint [32]byte

// ParseFingerprint decodes a 0x-prefixed or bare hex string into a Fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	var fp Fingerprint
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return fp, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	if len(raw) != len(fp) {
		return fp, fmt.Errorf("invalid fingerprint %q: want %d bytes, got %d", s, len(fp), len(raw))
	}
	copy(fp[:], raw)
	return fp, nil
}

// String renders the fingerprint as 0x-prefixed lowercase hex.
func (f Fingerprint) String() string {
	return "0x" + hex.EncodeToString(f[:])
}

// Event represents a typed event emitted during wallet state transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
