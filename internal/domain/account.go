package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"hash/crc32"
)

// MaxPrincipalLen is the longest principal that fits a subaccount
// (one length byte followed by the principal bytes).
const MaxPrincipalLen = 29

const accountDomainSeparator = "\x0aaccount-id"

// Subaccount derives the 32-byte per-owner subaccount: the owner's length
// in byte 0, its bytes after that, zero-padded.
func Subaccount(owner Principal) ([32]byte, error) {
	var sub [32]byte
	if len(owner) == 0 || len(owner) > MaxPrincipalLen {
		return sub, &ValidationError{Message: "principal must be 1-29 bytes"}
	}
	sub[0] = byte(len(owner))
	copy(sub[1:], owner)
	return sub, nil
}

// DepositAddress derives the account identifier an owner deposits into:
// crc32(h) followed by h, where h = sha224(separator || exchange || subaccount(owner)).
// It is a pure function of its inputs.
func DepositAddress(exchange, owner Principal) ([]byte, error) {
	sub, err := Subaccount(owner)
	if err != nil {
		return nil, err
	}

	h := sha256.New224()
	h.Write([]byte(accountDomainSeparator))
	h.Write([]byte(exchange))
	h.Write(sub[:])
	sum := h.Sum(nil)

	out := make([]byte, 4, 4+len(sum))
	binary.BigEndian.PutUint32(out, crc32.ChecksumIEEE(sum))
	return append(out, sum...), nil
}
