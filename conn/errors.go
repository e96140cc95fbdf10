package conn

import "errors"

var ErrClosed = errors.New("conn: connection closed")
