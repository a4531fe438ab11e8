package domain

import "errors"

// ErrDocumentNotFound is returned when a document ID cannot be found in the store.
var ErrDocumentNotFound = errors.New("document not found")

// ErrDefinitionNotFound is returned when a library has no definition with the requested name.
var ErrDefinitionNotFound = errors.New("definition not found")

// ErrLockAcquire is returned when a distributed lock cannot be obtained before the context ends.
var ErrLockAcquire = errors.New("could not acquire lock")
