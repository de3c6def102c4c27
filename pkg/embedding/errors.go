package embedding

import "errors"

var (
	// ErrUnknownID is returned when an id has no vector in the table
	ErrUnknownID = errors.New("unknown embedding id")

	// ErrDimension is returned when a vector length does not match the table
	ErrDimension = errors.New("embedding dimension mismatch")
)
