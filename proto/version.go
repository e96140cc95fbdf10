// Package proto defines the broker-visible protocol: message kinds,
// protocol version negotiation, and the per-message minimum-version table
// that the dispatcher uses to gate inbound and outbound traffic.
//
// The wire encoding of these messages — the length-prefixed binary framing
// — lives below the Transport boundary; a Transport (see package
// transport) hands the dispatcher already-framed values of the types
// declared here.
package proto

import "fmt"

// Version is a negotiated (major, minor) protocol version. Major is
// always 1 for this broker; minor identifies the feature window.
type Version struct {
	Major uint32
	Minor uint32
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast reports whether v is at or above the given minor version (within
// the fixed major version 1).
func (v Version) AtLeast(minor uint32) bool {
	return v.Minor >= minor
}

// MinSupportedMinor is the oldest minor version this broker accepts.
const MinSupportedMinor = 14

// Minor versions at which message kinds or behaviors were introduced.
const (
	MinorAbortFunctionCall = 16 // AbortFunctionCall
	MinorIntrospection     = 17 // QueryIntrospection / RegisterIntrospection
	MinorSubscribeAll      = 18 // SubscribeAllEvents, SubscribeService, capacity-overflow-closes-receiver-only
)

// VersionWindow is the inclusive [Min, Max] minor-version range a side of
// the handshake is willing to speak.
type VersionWindow struct {
	Min uint32
	Max uint32
}

// Negotiate picks the highest minor version both broker and client
// support. ok is false if the windows do not overlap.
func Negotiate(broker, client VersionWindow) (minor uint32, ok bool) {
	if client.Min > broker.Max || broker.Min > client.Max {
		return 0, false
	}
	hi := broker.Max
	if client.Max < hi {
		hi = client.Max
	}
	lo := broker.Min
	if client.Min > lo {
		lo = client.Min
	}
	if lo > hi {
		return 0, false
	}
	return hi, true
}
