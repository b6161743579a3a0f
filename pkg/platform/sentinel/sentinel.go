package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, lockers and CMS clients
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
//   - ErrNotFound: document or record does not exist
//   - ErrConflict: write rejected because the stored revision moved on
//   - ErrLocked: another worker holds the lease for the key
//   - ErrUnavailable: backing service temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrLocked      = errors.New("locked")
	ErrUnavailable = errors.New("unavailable")
)
