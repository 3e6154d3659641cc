package certxmlenc

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is wrapped by all errors reporting a missing or
// empty required input. These are surfaced before any side effect.
var ErrInvalidArgument = errors.New("certxmlenc: invalid argument")

// CertificateNotFoundError is returned when a resolver reports no
// certificate for the requested thumbprint.
type CertificateNotFoundError struct {
	Thumbprint string
}

func (e *CertificateNotFoundError) Error() string {
	return fmt.Sprintf("certxmlenc: no certificate found for thumbprint %q", e.Thumbprint)
}
