package model

import "errors"

// Sentinel errors shared across the engine. Callers match them with
// errors.Is; concrete sites wrap them with context via fmt.Errorf.
var (
	// ErrNotFound means a reference, instance, or branch does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAmbiguous means an id prefix matched more than one instance.
	ErrAmbiguous = errors.New("ambiguous reference")

	// ErrCycle means a merge would make an instance its own ancestor.
	ErrCycle = errors.New("merge would create a lineage cycle")

	// ErrStorage means the underlying database cannot be read or written.
	ErrStorage = errors.New("storage unavailable")

	// ErrRegistryExhausted means even the synthesized branch name
	// fallback failed. Register degrades to "main" before reporting this.
	ErrRegistryExhausted = errors.New("no branch name available")
)
