package domain

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"io"
	"strconv"
)

// NewRoomID returns an unguessable URL-safe room identifier.
// 96 bits of entropy makes collision handling unnecessary.
func NewRoomID() RoomID {
	b := make([]byte, 12)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		panic("domain: crypto/rand unavailable: " + err.Error())
	}
	return RoomID(base64.RawURLEncoding.EncodeToString(b))
}

// NewAccessCode returns a short human-typeable one-time code:
// 4 random bytes rendered in base36, truncated to 6 characters.
func NewAccessCode() AccessCode {
	b := make([]byte, 4)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		panic("domain: crypto/rand unavailable: " + err.Error())
	}
	n := binary.BigEndian.Uint32(b)
	s := strconv.FormatUint(uint64(n), 36)
	if len(s) > 6 {
		s = s[:6]
	}
	return AccessCode(s)
}
