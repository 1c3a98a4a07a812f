// Package ident generates identifiers for timeline entities.
//
// Every event, track, stroke and narration segment gets a type-prefixed
// UUIDv7, so IDs sort by creation time and are readable in logs
// ("evt_0190...", "trk_0190...").
package ident

import (
	"strconv"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator producing RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends a fixed prefix to every ID produced by gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns a deterministic Generator ("1", "2", ...). Intended for tests
// and golden files.
func Sequence() Generator {
	n := 0
	return func() string {
		n++
		return strconv.Itoa(n)
	}
}

// Default is the generator used by New. Swap it at startup, not concurrently.
var Default Generator = UUIDv7()

// Prefixes used across the engine.
const (
	EventPrefix   = "evt_"
	TrackPrefix   = "trk_"
	StrokePrefix  = "stk_"
	SegmentPrefix = "seg_"
)

// New returns a fresh ID with the given prefix.
func New(prefix string) string {
	return prefix + Default()
}
