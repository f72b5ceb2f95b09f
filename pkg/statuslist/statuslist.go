// Package statuslist implements token status lists: packed two bit status
// entries, compressed and carried in a signed JWT. The issuer side builds
// and signs lists, the verifier side fetches, caches and evaluates them.
package statuslist

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// BitsPerEntry is fixed: two bits encode ACTIVE, SUSPENDED and REVOKED.
const BitsPerEntry = 2

// maxDecompressedBytes caps list inflation, 16 MiB is four million entries
// beyond any configured list size.
const maxDecompressedBytes = 16 << 20

// Status is one credential's state on a status list.
type Status uint8

const (
	StatusActive    Status = 0x0
	StatusSuspended Status = 0x1
	StatusRevoked   Status = 0x3
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusSuspended:
		return "SUSPENDED"
	case StatusRevoked:
		return "REVOKED"
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
}

// Known reports whether the two bit value is an assigned status.
func (s Status) Known() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusRevoked:
		return true
	}
	return false
}

// BitString packs two bit status entries least significant bits first, the
// layout the token status list format uses.
type BitString struct {
	bits []byte
	size int
}

// NewBitString allocates a list of size entries, all ACTIVE.
func NewBitString(size int) (*BitString, error) {
	if size <= 0 {
		return nil, fmt.Errorf("status list size must be positive, got %d", size)
	}
	return &BitString{
		bits: make([]byte, (size*BitsPerEntry+7)/8),
		size: size,
	}, nil
}

// FromBytes wraps an existing packed byte array.
func FromBytes(bits []byte, size int) (*BitString, error) {
	if size <= 0 {
		return nil, fmt.Errorf("status list size must be positive, got %d", size)
	}
	if need := (size*BitsPerEntry + 7) / 8; len(bits) < need {
		return nil, fmt.Errorf("status list byte array too short: %d < %d", len(bits), need)
	}
	return &BitString{bits: bits, size: size}, nil
}

func (b *BitString) Size() int { return b.size }

// Bytes returns the packed array. Callers must not modify it.
func (b *BitString) Bytes() []byte { return b.bits }

// Get reads the entry at index.
func (b *BitString) Get(index int) (Status, error) {
	if index < 0 || index >= b.size {
		return 0, fmt.Errorf("status list index %d out of range [0,%d)", index, b.size)
	}
	pos := index * BitsPerEntry
	shift := uint(pos % 8)
	return Status((b.bits[pos/8] >> shift) & 0x3), nil
}

// Set writes the entry at index.
func (b *BitString) Set(index int, s Status) error {
	if index < 0 || index >= b.size {
		return fmt.Errorf("status list index %d out of range [0,%d)", index, b.size)
	}
	pos := index * BitsPerEntry
	shift := uint(pos % 8)
	b.bits[pos/8] &^= 0x3 << shift
	b.bits[pos/8] |= byte(s) << shift
	return nil
}

// Compress deflates the packed array with zlib.
func (b *BitString) Compress() ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(b.bits); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress inflates a compressed list. The entry count is derived from
// the decompressed length.
func Decompress(data []byte) (*BitString, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("inflate status list: %w", err)
	}
	defer r.Close()

	bits, err := io.ReadAll(io.LimitReader(r, maxDecompressedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("inflate status list: %w", err)
	}
	if len(bits) > maxDecompressedBytes {
		return nil, fmt.Errorf("status list exceeds %d bytes", maxDecompressedBytes)
	}
	return FromBytes(bits, len(bits)*8/BitsPerEntry)
}
