package core

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// GUIDPrefix is the 96-bit participant part of an RTPS GUID.
type GUIDPrefix [12]byte

// EntityID is the 32-bit endpoint part of an RTPS GUID.
type EntityID uint32

// GUID is the 128-bit RTPS global identifier. The zero GUID means "absent".
type GUID struct {
	Prefix GUIDPrefix
	Entity EntityID
}

// NewGUID joins a prefix and an entity id.
func NewGUID(prefix GUIDPrefix, entity EntityID) GUID {
	return GUID{Prefix: prefix, Entity: entity}
}

// IsZero reports whether g is the all-zero GUID.
func (g GUID) IsZero() bool {
	return g == GUID{}
}

// Compare orders GUIDs as 128-bit big-endian integers.
func (g GUID) Compare(o GUID) int {
	if c := bytes.Compare(g.Prefix[:], o.Prefix[:]); c != 0 {
		return c
	}
	switch {
	case g.Entity < o.Entity:
		return -1
	case g.Entity > o.Entity:
		return 1
	}
	return 0
}

func (g GUID) String() string {
	return fmt.Sprintf("0x%s%08x", hex.EncodeToString(g.Prefix[:]), uint32(g.Entity))
}

// MarshalText renders the GUID as a 0x-prefixed 32 digit hex string.
func (g GUID) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText parses the form produced by MarshalText.
func (g *GUID) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(strings.ToLower(string(text)), "0x")
	if len(s) != 32 {
		return fmt.Errorf("%w: %q", ErrInvalidGUIDPrefix, text)
	}
	prefix, err := ParseGUIDPrefix(s[:24])
	if err != nil {
		return err
	}
	entity, err := strconv.ParseUint(s[24:], 16, 32)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidEntityID, text)
	}
	*g = NewGUID(prefix, EntityID(entity))
	return nil
}

func (p GUIDPrefix) String() string {
	return hex.EncodeToString(p[:])
}

// Colon renders the prefix the way Wireshark displays it: xx:xx:...:xx.
func (p GUIDPrefix) Colon() string {
	parts := make([]string, len(p))
	for i, b := range p {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, ":")
}

// IsZero reports whether the prefix is all zeros.
func (p GUIDPrefix) IsZero() bool {
	return p == GUIDPrefix{}
}

// ParseGUIDPrefix parses a decoder prefix value. Accepted forms are plain hex,
// 0x-prefixed hex and colon separated bytes. Shorter values are left padded.
func ParseGUIDPrefix(s string) (GUIDPrefix, error) {
	var p GUIDPrefix
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.ReplaceAll(s, ":", "")
	if s == "" {
		return p, fmt.Errorf("%w: empty", ErrMissingGUIDPrefix)
	}
	if len(s) > 2*len(p) {
		return p, fmt.Errorf("%w: %q too long", ErrInvalidGUIDPrefix, s)
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return p, fmt.Errorf("%w: %q", ErrInvalidGUIDPrefix, s)
	}
	copy(p[len(p)-len(raw):], raw)
	return p, nil
}

// ParseEntityID parses the first value of a comma-joined decoder field of the
// form 0xHHHH. The boolean is false when no id is present.
func ParseEntityID(s string) (EntityID, bool) {
	v, ok := ParseHexField(s)
	if !ok || v > 0xffffffff {
		return 0, false
	}
	return EntityID(v), true
}

// ParseHexField parses the leading 0x-prefixed hex number of the first
// comma-separated value of s.
func ParseHexField(s string) (uint64, bool) {
	first, _, _ := strings.Cut(s, ",")
	first = strings.TrimSpace(first)
	if !strings.HasPrefix(first, "0x") && !strings.HasPrefix(first, "0X") {
		return 0, false
	}
	digits := first[2:]
	end := 0
	for end < len(digits) && isHexDigit(digits[end]) {
		end++
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.ParseUint(digits[:end], 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
