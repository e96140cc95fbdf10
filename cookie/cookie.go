// Package cookie mints the broker's 128-bit object, service, channel and
// bus-listener identifiers.
package cookie

import (
	"github.com/google/uuid"
)

// Cookie is a broker-minted 128-bit opaque identifier. The zero value is
// never minted and is used as a sentinel for "no cookie".
type Cookie uuid.UUID

// Nil is the zero Cookie, never returned by Allocator.New.
var Nil Cookie

// String renders the cookie in canonical UUID form, for logging.
func (c Cookie) String() string {
	return uuid.UUID(c).String()
}

// IsNil reports whether c is the zero cookie.
func (c Cookie) IsNil() bool {
	return c == Nil
}

// Exists reports whether a cookie is currently live; registries implement
// this to let the allocator detect (cryptographically implausible)
// collisions before handing out a fresh value.
type Exists func(c Cookie) bool

// Allocator mints fresh cookies uniformly at random. It never accepts
// caller-supplied cookies: every live cookie in the broker originates from
// a call to New.
type Allocator struct{}

// New generates a random Cookie; Nil is impossible by construction of
// uuid.New. If taken is non-nil and reports the cookie
// is already live, the allocator regenerates until it finds a free value.
func (Allocator) New(taken Exists) Cookie {
	for {
		c := Cookie(uuid.New())
		if c.IsNil() {
			continue
		}
		if taken == nil || !taken(c) {
			return c
		}
	}
}
