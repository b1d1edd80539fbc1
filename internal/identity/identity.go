// Package identity validates participant addresses and derives match identifiers.
package identity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/park285/cheese-wager/internal/wagererr"
)

const (
	minAddressLen = 3
	maxAddressLen = 90
	matchIDLen    = 32
)

// Address is a canonical participant handle.
type Address string

func (a Address) String() string { return string(a) }

// ValidateAddress accepts 3-90 characters of [a-z0-9]. The input is never rewritten:
// an address that is not already canonical is rejected.
func ValidateAddress(raw string) (Address, error) {
	if len(raw) < minAddressLen || len(raw) > maxAddressLen {
		return "", wagererr.ErrInvalidAddress
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return "", wagererr.ErrInvalidAddress
		}
	}
	return Address(raw), nil
}

// MatchID is the 32-byte primary key of a match.
type MatchID [matchIDLen]byte

// String renders the identifier as lowercase hex, the only form used at the boundary.
func (id MatchID) String() string { return hex.EncodeToString(id[:]) }

// DeriveMatchID hashes challenger ‖ opponent ‖ big-endian nonce with SHA-256.
func DeriveMatchID(challenger, opponent Address, nonce uint64) MatchID {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)

	h := sha256.New()
	h.Write([]byte(challenger))
	h.Write([]byte(opponent))
	h.Write(n[:])

	var id MatchID
	copy(id[:], h.Sum(nil))
	return id
}

// ParseMatchID accepts exactly 64 lowercase hex characters.
func ParseMatchID(s string) (MatchID, error) {
	var id MatchID
	if len(s) != hex.EncodedLen(matchIDLen) {
		return id, wagererr.ErrInvalidMatchID
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return id, wagererr.ErrInvalidMatchID
		}
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, wagererr.ErrInvalidMatchID
	}
	return id, nil
}
