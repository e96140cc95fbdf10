package proto

// minVersion maps each message kind to the minimum minor protocol version
// that introduces it. Dispatch (package dispatch) consults it twice — to reject
// inbound messages below their minimum as protocol violations, and to
// suppress outbound messages to peers whose negotiated version can't
// understand them (e.g. AbortFunctionCall to a 1.15 callee).
var minVersion = map[Kind]uint32{
	// present since the oldest supported version
	KindConnect: MinSupportedMinor, KindConnect2: MinSupportedMinor,
	KindConnectReply: MinSupportedMinor, KindConnectReply2: MinSupportedMinor,
	KindShutdown: MinSupportedMinor, KindSync: MinSupportedMinor, KindSyncReply: MinSupportedMinor,

	KindCreateObject: MinSupportedMinor, KindCreateObjectReply: MinSupportedMinor,
	KindDestroyObject: MinSupportedMinor, KindDestroyObjectReply: MinSupportedMinor,

	KindCreateService: MinSupportedMinor, KindCreateServiceReply: MinSupportedMinor,
	KindDestroyService: MinSupportedMinor, KindDestroyServiceReply: MinSupportedMinor,
	KindServiceDestroyed: MinSupportedMinor,
	KindQueryServiceInfo: MinSupportedMinor, KindQueryServiceInfoReply: MinSupportedMinor,

	KindCallFunction: MinSupportedMinor, KindCallFunctionReply: MinSupportedMinor,

	KindSubscribeEvent: MinSupportedMinor, KindSubscribeEventReply: MinSupportedMinor,
	KindUnsubscribeEvent: MinSupportedMinor, KindEmitEvent: MinSupportedMinor,

	KindCreateChannel: MinSupportedMinor, KindCreateChannelReply: MinSupportedMinor,
	KindCloseChannelEnd: MinSupportedMinor, KindCloseChannelEndReply: MinSupportedMinor,
	KindChannelEndClosed: MinSupportedMinor,
	KindClaimChannelEnd:  MinSupportedMinor, KindClaimChannelEndReply: MinSupportedMinor,
	KindChannelEndClaimed:  MinSupportedMinor,
	KindSendItem:           MinSupportedMinor,
	KindItemReceived:       MinSupportedMinor,
	KindAddChannelCapacity: MinSupportedMinor,

	KindCreateBusListener: MinSupportedMinor, KindCreateBusListenerReply: MinSupportedMinor,
	KindDestroyBusListener: MinSupportedMinor, KindDestroyBusListenerReply: MinSupportedMinor,
	KindAddBusListenerFilter: MinSupportedMinor, KindRemoveBusListenerFilter: MinSupportedMinor,
	KindClearBusListenerFilters: MinSupportedMinor,
	KindStartBusListener:        MinSupportedMinor, KindStartBusListenerReply: MinSupportedMinor,
	KindStopBusListener: MinSupportedMinor, KindStopBusListenerReply: MinSupportedMinor,
	KindEmitBusEvent:               MinSupportedMinor,
	KindBusListenerCurrentFinished: MinSupportedMinor,

	// gated
	KindAbortFunctionCall: MinorAbortFunctionCall,

	KindSubscribeAllEvents: MinorSubscribeAll, KindSubscribeAllEventsReply: MinorSubscribeAll,
	KindUnsubscribeAllEvents: MinorSubscribeAll, KindUnsubscribeAllEventsReply: MinorSubscribeAll,
	KindSubscribeService: MinorSubscribeAll, KindSubscribeServiceReply: MinorSubscribeAll,
	KindUnsubscribeService: MinorSubscribeAll,

	KindQueryIntrospection: MinorIntrospection, KindQueryIntrospectionReply: MinorIntrospection,
	KindRegisterIntrospection: MinorIntrospection,
}

// MinVersion returns the minimum minor version that introduces k. Unknown
// kinds report MinSupportedMinor, the conservative default.
func MinVersion(k Kind) uint32 {
	if m, ok := minVersion[k]; ok {
		return m
	}
	return MinSupportedMinor
}

// Allowed reports whether a message of kind k may be exchanged on a
// connection negotiated at v. Used both for inbound rejection (protocol
// violation -> transport close) and outbound suppression.
func Allowed(k Kind, v Version) bool {
	return v.AtLeast(MinVersion(k))
}
