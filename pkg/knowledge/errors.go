package knowledge

import "errors"

var (
	// ErrMissingPath is returned when a dictionary, triple file or data
	// directory does not exist. No partial result is returned with it.
	ErrMissingPath = errors.New("path does not exist")

	// ErrUnknownName is returned when a triple names an entity or relation
	// that is not in the dictionaries
	ErrUnknownName = errors.New("name not in dictionary")

	// ErrSamplerExhausted is returned when a retry limit is set and no
	// corrupted triple outside the known set was found within it
	ErrSamplerExhausted = errors.New("negative sampling exhausted retries")
)
