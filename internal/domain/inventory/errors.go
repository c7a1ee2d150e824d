package inventory

import "errors"

// Sentinel errors returned by the service and repositories. Handlers map
// them to HTTP statuses; anything else is a 500.
var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateBarcode = errors.New("barcode already exists")
	ErrValidation       = errors.New("validation failed")
)
