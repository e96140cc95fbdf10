package proto

import "github.com/dennis-hamester/aldrin/cookie"

// Kind identifies a protocol message type.
type Kind byte

const (
	KindConnect Kind = iota + 1
	KindConnect2
	KindConnectReply
	KindConnectReply2
	KindShutdown
	KindSync
	KindSyncReply

	KindCreateObject
	KindCreateObjectReply
	KindDestroyObject
	KindDestroyObjectReply

	KindCreateService
	KindCreateServiceReply
	KindDestroyService
	KindDestroyServiceReply
	KindServiceDestroyed
	KindQueryServiceInfo
	KindQueryServiceInfoReply

	KindCallFunction
	KindCallFunctionReply
	KindAbortFunctionCall

	KindSubscribeEvent
	KindSubscribeEventReply
	KindUnsubscribeEvent
	KindEmitEvent
	KindSubscribeAllEvents
	KindSubscribeAllEventsReply
	KindUnsubscribeAllEvents
	KindUnsubscribeAllEventsReply
	KindSubscribeService
	KindSubscribeServiceReply
	KindUnsubscribeService

	KindCreateChannel
	KindCreateChannelReply
	KindCloseChannelEnd
	KindCloseChannelEndReply
	KindChannelEndClosed
	KindClaimChannelEnd
	KindClaimChannelEndReply
	KindChannelEndClaimed
	KindSendItem
	KindItemReceived
	KindAddChannelCapacity

	KindCreateBusListener
	KindCreateBusListenerReply
	KindDestroyBusListener
	KindDestroyBusListenerReply
	KindAddBusListenerFilter
	KindRemoveBusListenerFilter
	KindClearBusListenerFilters
	KindStartBusListener
	KindStartBusListenerReply
	KindStopBusListener
	KindStopBusListenerReply
	KindEmitBusEvent
	KindBusListenerCurrentFinished

	KindQueryIntrospection
	KindQueryIntrospectionReply
	KindRegisterIntrospection
)

var kindNames = map[Kind]string{
	KindConnect: "Connect", KindConnect2: "Connect2",
	KindConnectReply: "ConnectReply", KindConnectReply2: "ConnectReply2",
	KindShutdown: "Shutdown", KindSync: "Sync", KindSyncReply: "SyncReply",

	KindCreateObject: "CreateObject", KindCreateObjectReply: "CreateObjectReply",
	KindDestroyObject: "DestroyObject", KindDestroyObjectReply: "DestroyObjectReply",

	KindCreateService: "CreateService", KindCreateServiceReply: "CreateServiceReply",
	KindDestroyService: "DestroyService", KindDestroyServiceReply: "DestroyServiceReply",
	KindServiceDestroyed:  "ServiceDestroyed",
	KindQueryServiceInfo:  "QueryServiceInfo",
	KindQueryServiceInfoReply: "QueryServiceInfoReply",

	KindCallFunction: "CallFunction", KindCallFunctionReply: "CallFunctionReply",
	KindAbortFunctionCall: "AbortFunctionCall",

	KindSubscribeEvent: "SubscribeEvent", KindSubscribeEventReply: "SubscribeEventReply",
	KindUnsubscribeEvent: "UnsubscribeEvent", KindEmitEvent: "EmitEvent",
	KindSubscribeAllEvents: "SubscribeAllEvents", KindSubscribeAllEventsReply: "SubscribeAllEventsReply",
	KindUnsubscribeAllEvents: "UnsubscribeAllEvents", KindUnsubscribeAllEventsReply: "UnsubscribeAllEventsReply",
	KindSubscribeService: "SubscribeService", KindSubscribeServiceReply: "SubscribeServiceReply",
	KindUnsubscribeService: "UnsubscribeService",

	KindCreateChannel: "CreateChannel", KindCreateChannelReply: "CreateChannelReply",
	KindCloseChannelEnd: "CloseChannelEnd", KindCloseChannelEndReply: "CloseChannelEndReply",
	KindChannelEndClosed: "ChannelEndClosed",
	KindClaimChannelEnd:  "ClaimChannelEnd", KindClaimChannelEndReply: "ClaimChannelEndReply",
	KindChannelEndClaimed:  "ChannelEndClaimed",
	KindSendItem:           "SendItem",
	KindItemReceived:       "ItemReceived",
	KindAddChannelCapacity: "AddChannelCapacity",

	KindCreateBusListener: "CreateBusListener", KindCreateBusListenerReply: "CreateBusListenerReply",
	KindDestroyBusListener: "DestroyBusListener", KindDestroyBusListenerReply: "DestroyBusListenerReply",
	KindAddBusListenerFilter: "AddBusListenerFilter", KindRemoveBusListenerFilter: "RemoveBusListenerFilter",
	KindClearBusListenerFilters: "ClearBusListenerFilters",
	KindStartBusListener:        "StartBusListener", KindStartBusListenerReply: "StartBusListenerReply",
	KindStopBusListener: "StopBusListener", KindStopBusListenerReply: "StopBusListenerReply",
	KindEmitBusEvent:               "EmitBusEvent",
	KindBusListenerCurrentFinished: "BusListenerCurrentFinished",

	KindQueryIntrospection: "QueryIntrospection", KindQueryIntrospectionReply: "QueryIntrospectionReply",
	KindRegisterIntrospection: "RegisterIntrospection",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Message is implemented by every concrete protocol message. Kind lets the
// dispatcher switch on message type without a reflection-based type
// assertion cascade.
type Message interface {
	Kind() Kind
}

func (Connect) Kind() Kind                     { return KindConnect }
func (Connect2) Kind() Kind                    { return KindConnect2 }
func (ConnectReply) Kind() Kind                { return KindConnectReply }
func (ConnectReply2) Kind() Kind                { return KindConnectReply2 }
func (Shutdown) Kind() Kind                    { return KindShutdown }
func (Sync) Kind() Kind                        { return KindSync }
func (SyncReply) Kind() Kind                   { return KindSyncReply }

func (CreateObject) Kind() Kind                { return KindCreateObject }
func (CreateObjectReply) Kind() Kind           { return KindCreateObjectReply }
func (DestroyObject) Kind() Kind               { return KindDestroyObject }
func (DestroyObjectReply) Kind() Kind          { return KindDestroyObjectReply }

func (CreateService) Kind() Kind               { return KindCreateService }
func (CreateServiceReply) Kind() Kind          { return KindCreateServiceReply }
func (DestroyService) Kind() Kind              { return KindDestroyService }
func (DestroyServiceReply) Kind() Kind         { return KindDestroyServiceReply }
func (ServiceDestroyed) Kind() Kind            { return KindServiceDestroyed }
func (QueryServiceInfo) Kind() Kind            { return KindQueryServiceInfo }
func (QueryServiceInfoReply) Kind() Kind       { return KindQueryServiceInfoReply }

func (CallFunction) Kind() Kind                { return KindCallFunction }
func (CallFunctionReply) Kind() Kind           { return KindCallFunctionReply }
func (AbortFunctionCall) Kind() Kind           { return KindAbortFunctionCall }

func (SubscribeEvent) Kind() Kind              { return KindSubscribeEvent }
func (SubscribeEventReply) Kind() Kind         { return KindSubscribeEventReply }
func (UnsubscribeEvent) Kind() Kind            { return KindUnsubscribeEvent }
func (EmitEvent) Kind() Kind                   { return KindEmitEvent }
func (SubscribeAllEvents) Kind() Kind          { return KindSubscribeAllEvents }
func (SubscribeAllEventsReply) Kind() Kind     { return KindSubscribeAllEventsReply }
func (UnsubscribeAllEvents) Kind() Kind        { return KindUnsubscribeAllEvents }
func (UnsubscribeAllEventsReply) Kind() Kind   { return KindUnsubscribeAllEventsReply }
func (SubscribeService) Kind() Kind            { return KindSubscribeService }
func (SubscribeServiceReply) Kind() Kind       { return KindSubscribeServiceReply }
func (UnsubscribeService) Kind() Kind          { return KindUnsubscribeService }

func (CreateChannel) Kind() Kind               { return KindCreateChannel }
func (CreateChannelReply) Kind() Kind          { return KindCreateChannelReply }
func (CloseChannelEnd) Kind() Kind             { return KindCloseChannelEnd }
func (CloseChannelEndReply) Kind() Kind        { return KindCloseChannelEndReply }
func (ChannelEndClosed) Kind() Kind            { return KindChannelEndClosed }
func (ClaimChannelEnd) Kind() Kind             { return KindClaimChannelEnd }
func (ClaimChannelEndReply) Kind() Kind        { return KindClaimChannelEndReply }
func (ChannelEndClaimed) Kind() Kind           { return KindChannelEndClaimed }
func (SendItem) Kind() Kind                    { return KindSendItem }
func (ItemReceived) Kind() Kind                { return KindItemReceived }
func (AddChannelCapacity) Kind() Kind          { return KindAddChannelCapacity }

func (CreateBusListener) Kind() Kind           { return KindCreateBusListener }
func (CreateBusListenerReply) Kind() Kind      { return KindCreateBusListenerReply }
func (DestroyBusListener) Kind() Kind          { return KindDestroyBusListener }
func (DestroyBusListenerReply) Kind() Kind     { return KindDestroyBusListenerReply }
func (AddBusListenerFilter) Kind() Kind        { return KindAddBusListenerFilter }
func (RemoveBusListenerFilter) Kind() Kind     { return KindRemoveBusListenerFilter }
func (ClearBusListenerFilters) Kind() Kind     { return KindClearBusListenerFilters }
func (StartBusListener) Kind() Kind            { return KindStartBusListener }
func (StartBusListenerReply) Kind() Kind       { return KindStartBusListenerReply }
func (StopBusListener) Kind() Kind             { return KindStopBusListener }
func (StopBusListenerReply) Kind() Kind        { return KindStopBusListenerReply }
func (EmitBusEvent) Kind() Kind                { return KindEmitBusEvent }
func (BusListenerCurrentFinished) Kind() Kind  { return KindBusListenerCurrentFinished }

func (QueryIntrospection) Kind() Kind          { return KindQueryIntrospection }
func (QueryIntrospectionReply) Kind() Kind     { return KindQueryIntrospectionReply }
func (RegisterIntrospection) Kind() Kind       { return KindRegisterIntrospection }

// --- Connection ---------------------------------------------------------

type Connect struct {
	Version    uint32
	UserData   any
}

type Connect2 struct {
	Version  VersionWindow
	UserData any
}

type ConnectResult byte

const (
	ConnectOk ConnectResult = iota
	ConnectIncompatibleVersion
)

type ConnectReply struct {
	Result     ConnectResult
	UserData   any
}

type ConnectReply2 struct {
	Result          ConnectResult
	Version         VersionWindow // broker's supported window, only on IncompatibleVersion
	NegotiatedMinor uint32
	UserData        any
}

type Shutdown struct{}

type Sync struct {
	Serial uint32
}

type SyncReply struct {
	Serial uint32
}

// --- Objects -------------------------------------------------------------

type ObjectUuid [16]byte

type CreateObject struct {
	Uuid ObjectUuid
}

type CreateObjectResult byte

const (
	CreateObjectOk CreateObjectResult = iota
	CreateObjectDuplicateObject
)

type CreateObjectReply struct {
	Result CreateObjectResult
	Cookie cookie.Cookie
}

type DestroyObject struct {
	Cookie cookie.Cookie
}

type DestroyObjectResult byte

const (
	DestroyObjectOk DestroyObjectResult = iota
	DestroyObjectInvalidObject
	DestroyObjectForeignObject
)

type DestroyObjectReply struct {
	Result DestroyObjectResult
}

// --- Services --------------------------------------------------------------

type ServiceUuid [16]byte

// ServiceInfo is carried by CreateService and returned by
// QueryServiceInfoReply.
type ServiceInfo struct {
	Version      uint32
	SubscribeAll bool // protocol >= 1.18
}

type CreateService struct {
	ObjectCookie cookie.Cookie
	Uuid         ServiceUuid
	Info         ServiceInfo
}

type CreateServiceResult byte

const (
	CreateServiceOk CreateServiceResult = iota
	CreateServiceDuplicateService
	CreateServiceInvalidObject
	CreateServiceForeignObject
)

type CreateServiceReply struct {
	Result CreateServiceResult
	Cookie cookie.Cookie
}

type DestroyService struct {
	Cookie cookie.Cookie
}

type DestroyServiceResult byte

const (
	DestroyServiceOk DestroyServiceResult = iota
	DestroyServiceInvalidService
	DestroyServiceForeignService
)

type DestroyServiceReply struct {
	Result DestroyServiceResult
}

type ServiceDestroyed struct {
	Cookie cookie.Cookie
}

type QueryServiceInfo struct {
	Cookie cookie.Cookie
}

type QueryServiceInfoResult byte

const (
	QueryServiceInfoOk QueryServiceInfoResult = iota
	QueryServiceInfoInvalidService
)

type QueryServiceInfoReply struct {
	Result QueryServiceInfoResult
	Info   ServiceInfo
}

// --- Calls ----------------------------------------------------------------

type CallFunction struct {
	Serial        uint32 // caller serial (caller->broker), broker serial (broker->callee)
	ServiceCookie cookie.Cookie
	Function      uint32
	Value         any
}

type CallFunctionResultKind byte

const (
	CallFunctionOk CallFunctionResultKind = iota
	CallFunctionErr
	CallFunctionAborted
	CallFunctionInvalidService
	CallFunctionInvalidFunction
	CallFunctionInvalidArgs
)

type CallFunctionReply struct {
	Serial uint32
	Result CallFunctionResultKind
	Value  any // populated for Ok/Err
}

type AbortFunctionCall struct {
	Serial uint32 // caller serial (caller->broker), broker serial (broker->callee)
}

// --- Events ----------------------------------------------------------------

type EventId uint32

type SubscribeEvent struct {
	ServiceCookie cookie.Cookie
	Event         EventId
	NotifyOwner   bool // owner wants to see subscribe/unsubscribe traffic
}

type SubscribeEventResult byte

const (
	SubscribeEventOk SubscribeEventResult = iota
	SubscribeEventInvalidService
)

type SubscribeEventReply struct {
	Result SubscribeEventResult
}

type UnsubscribeEvent struct {
	ServiceCookie cookie.Cookie
	Event         EventId
}

type EmitEvent struct {
	ServiceCookie cookie.Cookie
	Event         EventId
	Value         any
}

type SubscribeAllEvents struct {
	ServiceCookie cookie.Cookie
}

type SubscribeAllEventsResult byte

const (
	SubscribeAllEventsOk SubscribeAllEventsResult = iota
	SubscribeAllEventsInvalidService
	SubscribeAllEventsNotSupported
)

type SubscribeAllEventsReply struct {
	Result SubscribeAllEventsResult
}

type UnsubscribeAllEvents struct {
	ServiceCookie cookie.Cookie
}

type UnsubscribeAllEventsResult byte

const (
	UnsubscribeAllEventsOk UnsubscribeAllEventsResult = iota
	UnsubscribeAllEventsNotSubscribed
)

type UnsubscribeAllEventsReply struct {
	Result UnsubscribeAllEventsResult
}

type SubscribeService struct {
	ObjectCookie cookie.Cookie
}

type SubscribeServiceResult byte

const (
	SubscribeServiceOk SubscribeServiceResult = iota
	SubscribeServiceInvalidObject
)

type SubscribeServiceReply struct {
	Result SubscribeServiceResult
}

type UnsubscribeService struct {
	ObjectCookie cookie.Cookie
}

// --- Channels --------------------------------------------------------------

type ChannelEnd byte

const (
	ChannelEndSender ChannelEnd = iota
	ChannelEndReceiver
)

func (e ChannelEnd) Other() ChannelEnd {
	if e == ChannelEndSender {
		return ChannelEndReceiver
	}
	return ChannelEndSender
}

type CreateChannel struct {
	ClaimedEnd ChannelEnd
	Capacity   uint32 // meaningful only when ClaimedEnd == ChannelEndReceiver
}

type CreateChannelReply struct {
	Cookie cookie.Cookie
}

type ClaimChannelEnd struct {
	Cookie   cookie.Cookie
	End      ChannelEnd
	Capacity uint32 // meaningful only when End == ChannelEndReceiver
}

type ClaimChannelEndResult byte

const (
	ClaimChannelEndOk ClaimChannelEndResult = iota
	ClaimChannelEndInvalidChannel
	ClaimChannelEndAlreadyClaimed
)

type ClaimChannelEndReply struct {
	Result   ClaimChannelEndResult
	Capacity uint32 // echoes sender-side capacity when claiming the receiver
}

type ChannelEndClaimed struct {
	Cookie   cookie.Cookie
	End      ChannelEnd
	Capacity uint32
}

type CloseChannelEnd struct {
	Cookie cookie.Cookie
	End    ChannelEnd
}

type CloseChannelEndResult byte

const (
	CloseChannelEndOk CloseChannelEndResult = iota
	CloseChannelEndInvalidChannel
	CloseChannelEndSenderClaimed
	CloseChannelEndReceiverClaimed
)

type CloseChannelEndReply struct {
	Result CloseChannelEndResult
}

type ChannelEndClosed struct {
	Cookie cookie.Cookie
	End    ChannelEnd
}

type SendItem struct {
	Cookie cookie.Cookie
	Value  any
}

type ItemReceived struct {
	Cookie cookie.Cookie
	Value  any
}

type AddChannelCapacity struct {
	Cookie cookie.Cookie
	Delta  uint32
}

// --- Bus listeners -----------------------------------------------------------

type BusListenerFilterKind byte

const (
	FilterAnyObject BusListenerFilterKind = iota
	FilterSpecificObject
	FilterAnyServiceOfAnyObject
	FilterAnyServiceOfSpecificObject
	FilterSpecificServiceOfAnyObject
	FilterSpecificService
)

// BusListenerFilter is one matching predicate a listener was configured
// with.
type BusListenerFilter struct {
	Kind        BusListenerFilterKind
	ObjectUuid  ObjectUuid  // FilterSpecificObject, FilterAnyServiceOfSpecificObject, FilterSpecificService
	ServiceUuid ServiceUuid // FilterSpecificServiceOfAnyObject, FilterSpecificService
}

type BusListenerScope byte

const (
	ScopeCurrentOnly BusListenerScope = iota
	ScopeNewOnly
	ScopeCurrentAndNew
)

func (s BusListenerScope) IncludesCurrent() bool {
	return s == ScopeCurrentOnly || s == ScopeCurrentAndNew
}

func (s BusListenerScope) IncludesNew() bool {
	return s == ScopeNewOnly || s == ScopeCurrentAndNew
}

type CreateBusListener struct{}

type CreateBusListenerReply struct {
	Cookie cookie.Cookie
}

type DestroyBusListener struct {
	Cookie cookie.Cookie
}

type DestroyBusListenerResult byte

const (
	DestroyBusListenerOk DestroyBusListenerResult = iota
	DestroyBusListenerInvalidBusListener
	DestroyBusListenerForeignBusListener
)

type DestroyBusListenerReply struct {
	Result DestroyBusListenerResult
}

type AddBusListenerFilter struct {
	Cookie cookie.Cookie
	Filter BusListenerFilter
}

type RemoveBusListenerFilter struct {
	Cookie cookie.Cookie
	Filter BusListenerFilter
}

type ClearBusListenerFilters struct {
	Cookie cookie.Cookie
}

type StartBusListener struct {
	Cookie cookie.Cookie
	Scope  BusListenerScope
}

type StartBusListenerResult byte

const (
	StartBusListenerOk StartBusListenerResult = iota
	StartBusListenerInvalidBusListener
	StartBusListenerAlreadyStarted
	StartBusListenerForeignBusListener
)

type StartBusListenerReply struct {
	Result StartBusListenerResult
}

type StopBusListener struct {
	Cookie cookie.Cookie
}

type StopBusListenerResult byte

const (
	StopBusListenerOk StopBusListenerResult = iota
	StopBusListenerInvalidBusListener
	StopBusListenerNotStarted
	StopBusListenerForeignBusListener
)

type StopBusListenerReply struct {
	Result StopBusListenerResult
}

type BusEventKind byte

const (
	BusEventObjectCreated BusEventKind = iota
	BusEventObjectDestroyed
	BusEventServiceCreated
	BusEventServiceDestroyed
)

type EmitBusEvent struct {
	Kind         BusEventKind
	ObjectCookie cookie.Cookie
	ObjectUuid   ObjectUuid
	// Service fields are populated for ServiceCreated/ServiceDestroyed only.
	ServiceCookie cookie.Cookie
	ServiceUuid   ServiceUuid
}

type BusListenerCurrentFinished struct {
	Cookie cookie.Cookie
}

// --- Introspection (>= 1.17) ------------------------------------------------

type TypeId [16]byte

type QueryIntrospection struct {
	Serial uint32
	Type   TypeId
}

type QueryIntrospectionResult byte

const (
	QueryIntrospectionOk QueryIntrospectionResult = iota
	QueryIntrospectionNotSupported
)

type QueryIntrospectionReply struct {
	Serial uint32
	Result QueryIntrospectionResult
	Value  any
}

type RegisterIntrospection struct {
	Type  TypeId
	Value any
}
