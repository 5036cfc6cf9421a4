// Package sqlbuffer provides an append-only text builder for assembling
// SQL statements one fragment at a time.
package sqlbuffer

import (
	"strconv"
	"strings"
)

// Buffer accumulates SQL text fragments and yields a single owned string.
// It is not safe for concurrent use; each query compilation should use its
// own Buffer.
type Buffer struct {
	b strings.Builder
}

// New returns an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// AppendString appends a raw string fragment.
func (buf *Buffer) AppendString(s string) *Buffer {
	buf.b.WriteString(s)
	return buf
}

// AppendByte appends a single character.
func (buf *Buffer) AppendByte(c byte) *Buffer {
	buf.b.WriteByte(c)
	return buf
}

// AppendInt appends an integer formatted in the C locale (plain decimal,
// no grouping separators).
func (buf *Buffer) AppendInt(v int64) *Buffer {
	buf.b.WriteString(strconv.FormatInt(v, 10))
	return buf
}

// AppendFloat appends a double formatted in the C locale.
func (buf *Buffer) AppendFloat(v float64) *Buffer {
	buf.b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	return buf
}

// IsEmpty reports whether any fragment has been appended.
func (buf *Buffer) IsEmpty() bool {
	return buf.b.Len() == 0
}

// Coalesce returns the accumulated text as a single owned string. It may be
// called exactly once per Buffer; after calling it the Buffer must not be
// reused.
func (buf *Buffer) Coalesce() string {
	return buf.b.String()
}
