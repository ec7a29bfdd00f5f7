// Package event decodes the fixed-layout records the capture program
// emits and enforces the scheduling policy on them.
package event

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
	"unsafe"
)

// DefaultAttributeName is the extended attribute that marks a file for
// deletion. Its value is the Unix timestamp at which the file expires.
const DefaultAttributeName = "user.expire_at"

// FieldWidth is the capacity of each slot in the kernel record. Must
// match event_t in bpf/sweeper.c. Longer values are truncated by the
// capture side; that loss is accepted, not an error.
const FieldWidth = 50

// WireEvent mirrors struct event_t byte for byte: three fixed slots,
// each holding a NUL-terminated, possibly truncated string.
type WireEvent struct {
	Path  [FieldWidth]byte
	Name  [FieldWidth]byte
	Value [FieldWidth]byte
}

// WireEventSize is the exact number of bytes the kernel writes per record.
const WireEventSize = 3 * FieldWidth

// Layout drift between the Go mirror and the C struct corrupts
// silently. Refuse to compile if the sizes disagree.
var _ [WireEventSize]byte = [unsafe.Sizeof(WireEvent{})]byte{}

// ScheduleRequest is a decoded, policy-validated event: delete Path
// once ExpireAt has passed.
type ScheduleRequest struct {
	Path     string
	Name     string
	ExpireAt int64
}

// Decode rejection classes. Rejected records are dropped by the caller,
// never propagated past the loop iteration that read them.
var (
	ErrShortRecord   = errors.New("record shorter than wire event")
	ErrInvalidUTF8   = errors.New("field is not valid UTF-8")
	ErrAttributeName = errors.New("attribute name is not the expiry attribute")
	ErrRelativePath  = errors.New("path is not absolute")
	ErrBadTimestamp  = errors.New("attribute value is not an integer timestamp")
)

// Decoder validates raw capture records against the scheduling policy.
type Decoder struct {
	attrName string
}

// NewDecoder returns a Decoder that accepts only attrName. An empty
// attrName selects DefaultAttributeName.
func NewDecoder(attrName string) *Decoder {
	if attrName == "" {
		attrName = DefaultAttributeName
	}
	return &Decoder{attrName: attrName}
}

// AttributeName returns the attribute this decoder accepts.
func (d *Decoder) AttributeName() string {
	return d.attrName
}

// Decode reinterprets a raw kernel record as a ScheduleRequest.
// The perf subsystem may pad records past WireEventSize; anything
// beyond the three fixed slots is ignored.
func (d *Decoder) Decode(raw []byte) (ScheduleRequest, error) {
	if len(raw) < WireEventSize {
		return ScheduleRequest{}, fmt.Errorf("%w: got %d bytes, want %d", ErrShortRecord, len(raw), WireEventSize)
	}

	path, err := fieldString(raw[0:FieldWidth])
	if err != nil {
		return ScheduleRequest{}, fmt.Errorf("path: %w", err)
	}
	name, err := fieldString(raw[FieldWidth : 2*FieldWidth])
	if err != nil {
		return ScheduleRequest{}, fmt.Errorf("name: %w", err)
	}
	value, err := fieldString(raw[2*FieldWidth : 3*FieldWidth])
	if err != nil {
		return ScheduleRequest{}, fmt.Errorf("value: %w", err)
	}

	if name != d.attrName {
		return ScheduleRequest{}, fmt.Errorf("%w: %q", ErrAttributeName, name)
	}
	if !strings.HasPrefix(path, "/") {
		return ScheduleRequest{}, fmt.Errorf("%w: %q", ErrRelativePath, path)
	}
	expireAt, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return ScheduleRequest{}, fmt.Errorf("%w: %q", ErrBadTimestamp, value)
	}

	return ScheduleRequest{Path: path, Name: name, ExpireAt: expireAt}, nil
}

// fieldString extracts the string from one fixed slot. The terminator
// is searched only within the slot; a missing terminator means the
// value filled the slot and the full width is used.
func fieldString(field []byte) (string, error) {
	end := bytes.IndexByte(field, 0)
	if end < 0 {
		end = len(field)
	}
	s := field[:end]
	if !utf8.Valid(s) {
		return "", ErrInvalidUTF8
	}
	return string(s), nil
}
