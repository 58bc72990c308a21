package config

import (
	"github.com/jmylchreest/tvplay/pkg/format"
)

// ByteSize is a byte count that accepts human-readable values such as "50MB"
// in config files and environment variables.
type ByteSize int64

// ParseByteSize parses a human-readable byte size string.
func ParseByteSize(s string) (ByteSize, error) {
	n, err := format.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	return ByteSize(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	parsed, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Bytes returns the size in bytes.
func (b ByteSize) Bytes() int64 {
	return int64(b)
}

func (b ByteSize) String() string {
	return format.Bytes(int64(b))
}
