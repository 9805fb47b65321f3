// Package id defines the identity types used by courier.
//
// Events and workers use TypeIDs: type-prefixed, K-sortable (UUIDv7-based),
// URL-safe identifiers in the format "prefix_suffix". Jobs and deliveries
// use a Sequence, which yields human-inspectable identifiers built from a
// monotonically increasing counter and a Unix timestamp.
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// TypeID prefixes.
const (
	PrefixEvent  Prefix = "evt"
	PrefixWorker Prefix = "wkr"
)

// ID is a TypeID. The zero value is Nil and renders as "".
//
//nolint:recvcheck // UnmarshalText needs a pointer receiver.
type ID struct {
	tid typeid.TypeID
	ok  bool
}

// Nil is the zero-value ID.
var Nil ID

// EventID identifies one triggered webhook event.
type EventID = ID

// WorkerID identifies a worker pool instance.
type WorkerID = ID

// New generates an ID with the given prefix. It panics on an invalid
// prefix, which is a programming error.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{tid: tid, ok: true}
}

// NewEventID generates a new event ID.
func NewEventID() EventID { return New(PrefixEvent) }

// NewWorkerID generates a new worker ID.
func NewWorkerID() WorkerID { return New(PrefixWorker) }

// Parse parses a TypeID string. When want is non-empty the prefix must
// match it.
func Parse(s string, want Prefix) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse: empty string")
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	if got := Prefix(tid.Prefix()); want != "" && got != want {
		return Nil, fmt.Errorf("id: parse %q: prefix %q, want %q", s, got, want)
	}
	return ID{tid: tid, ok: true}, nil
}

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.ok {
		return ""
	}
	return i.tid.String()
}

// Prefix returns the prefix component of the ID.
func (i ID) Prefix() Prefix {
	if !i.ok {
		return ""
	}
	return Prefix(i.tid.Prefix())
}

// IsNil reports whether i is the zero value.
func (i ID) IsNil() bool { return !i.ok }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields
// Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data), "")
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
