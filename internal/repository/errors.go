// Package repository defines the lot stores and the error types they
// share. These sentinel values allow higher layers such as handlers to
// distinguish between different failure scenarios. ErrLotNotFound means
// no row carries the requested id, while ErrStorage wraps any failure of
// the underlying file, table or API.
package repository

import (
	"errors"
	"fmt"
)

// ErrLotNotFound is returned when an update targets an id that no row
// carries. Handlers should translate this into an HTTP 404 response.
var ErrLotNotFound = errors.New("lot not found")

// ErrStorage is returned when the canonical store is unreachable or
// malformed. Handlers should translate this into an HTTP 500 response.
var ErrStorage = errors.New("storage i/o failure")

// storageErr wraps err so that errors.Is(err, ErrStorage) holds while
// keeping the original cause in the chain.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
