package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// ErrNotFound means the record does not exist in the store. For validation
// errors (bad input, missing fields), use pkg/domain-errors directly.
var ErrNotFound = errors.New("not found")
