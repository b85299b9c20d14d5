package workflow

import (
	"errors"
	"fmt"
)

// Op names one of the optimizer round trips.
type Op string

const (
	OpUpload   Op = "upload"
	OpOptimize Op = "optimize"
	OpExport   Op = "export"
	OpValidate Op = "validate"
	OpHealth   Op = "health"
)

// Title is the capitalized op name used in user-facing messages.
func (o Op) Title() string {
	switch o {
	case OpUpload:
		return "Upload"
	case OpOptimize:
		return "Optimize"
	case OpExport:
		return "Export"
	case OpValidate:
		return "Validate"
	case OpHealth:
		return "Health"
	}
	return string(o)
}

// ErrTransport marks failures where no usable service answer was obtained:
// connection errors, timeouts and undecodable bodies.
var ErrTransport = errors.New("optimizer unreachable")

// ServiceError is a non-success response that carried an error message.
type ServiceError struct {
	Op      Op
	Status  int
	Message string

	invalid []string // problems listed by a rejected validate call
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: service returned %d: %s", e.Op, e.Status, e.Message)
}

// StatusMessage is the text shown to the user for a failed round trip. A
// service-provided message is shown verbatim; everything else collapses to
// the generic "<Op> failed".
func StatusMessage(op Op, err error) string {
	var se *ServiceError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return op.Title() + " failed"
}
