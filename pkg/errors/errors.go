package errors

import "fmt"

// ErrNotFound is returned when a resource is not found
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrAmbiguousReference is returned when an external reference resolves to
// more than one order. Ambiguity is an error, never "pick first".
type ErrAmbiguousReference struct {
	Reference string
	Matches   int
}

func (e *ErrAmbiguousReference) Error() string {
	return fmt.Sprintf("reference %q matched %d orders", e.Reference, e.Matches)
}

// ErrUnauthorized is returned when authentication fails
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrValidation is returned when validation fails. Fields names the specific
// failing rule per field so admins can see exactly what a courier would reject.
type ErrValidation struct {
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// ErrPreconditionFailed is returned when an operation requires prior state
// that is not present (e.g. cancel-shipment before create-shipment).
type ErrPreconditionFailed struct {
	Message string
}

func (e *ErrPreconditionFailed) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "precondition failed"
}

// ErrAlreadyShipped is returned when an order already carries an active
// shipment and a second one was requested.
type ErrAlreadyShipped struct {
	OrderID      string
	TrackingCode string
}

func (e *ErrAlreadyShipped) Error() string {
	return fmt.Sprintf("order %s already has shipment %s", e.OrderID, e.TrackingCode)
}

// ErrVersionConflict is returned by compare-and-set repository writes when
// the order changed between read and write. Callers reload and retry.
type ErrVersionConflict struct {
	OrderID string
}

func (e *ErrVersionConflict) Error() string {
	return fmt.Sprintf("order %s was modified concurrently", e.OrderID)
}
