package memstore

import "errors"

var errClosed = errors.New("engine closed")
