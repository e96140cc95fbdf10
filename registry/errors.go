package registry

import "errors"

// Semantic errors: reported back to the offending caller via a structured
// reply, never torn down as a protocol violation.
var (
	ErrDuplicateObject  = errors.New("registry: duplicate object uuid")
	ErrInvalidObject    = errors.New("registry: invalid object cookie")
	ErrForeignObject    = errors.New("registry: object owned by another client")
	ErrDuplicateService = errors.New("registry: duplicate service uuid")
	ErrInvalidService   = errors.New("registry: invalid service cookie")
	ErrForeignService   = errors.New("registry: service owned by another client")

	ErrInvalidChannel   = errors.New("registry: invalid channel cookie")
	ErrAlreadyClaimed   = errors.New("registry: channel end already claimed")
	ErrReceiverClaimed  = errors.New("registry: receiver end already claimed")
	ErrSenderClaimed    = errors.New("registry: sender end already claimed")
	ErrNotOwner         = errors.New("registry: client does not own this end")

	ErrInvalidBusListener    = errors.New("registry: invalid bus listener cookie")
	ErrBusListenerStarted    = errors.New("registry: bus listener already started")
	ErrBusListenerNotStarted = errors.New("registry: bus listener not started")

	ErrUnknownClient = errors.New("registry: unknown connection id")
	ErrNoSuchCall    = errors.New("registry: no such pending call")
)
