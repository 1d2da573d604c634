package health

import (
	"context"
	"errors"
	"time"

	"github.com/yachaflex/pairing/internal/model/biometric"
)

var (
	ErrUnavailable      = errors.New("health provider unavailable")
	ErrUpdateRequired   = errors.New("health provider update required")
	ErrPermissionDenied = errors.New("health permission denied")
	ErrProvider         = errors.New("health provider error")
)

// ProviderStatus describes whether the local health-data provider can be queried.
type ProviderStatus int

const (
	StatusAvailable ProviderStatus = iota
	StatusUnavailable
	StatusUpdateRequired
)

func (s ProviderStatus) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusUpdateRequired:
		return "update_required"
	default:
		return "unavailable"
	}
}

// Err maps a non-available status to its sentinel error.
func (s ProviderStatus) Err() error {
	switch s {
	case StatusAvailable:
		return nil
	case StatusUpdateRequired:
		return ErrUpdateRequired
	default:
		return ErrUnavailable
	}
}

// Grants is the set of kinds the user has authorised for reading.
type Grants map[biometric.Kind]bool

// NewGrants builds a grant set from a list of kinds.
func NewGrants(kinds ...biometric.Kind) Grants {
	g := make(Grants, len(kinds))
	for _, k := range kinds {
		g[k] = true
	}
	return g
}

// Missing returns the required kinds that are not granted, in input order.
func (g Grants) Missing(required []biometric.Kind) []biometric.Kind {
	var missing []biometric.Kind
	for _, k := range required {
		if !g[k] {
			missing = append(missing, k)
		}
	}
	return missing
}

// Reader is the local health-data provider consumed by the forwarder.
type Reader interface {
	Status(ctx context.Context) ProviderStatus
	GrantedPermissions(ctx context.Context) (Grants, error)
	// ReadWindow returns the samples of kind recorded in [start, end).
	ReadWindow(ctx context.Context, kind biometric.Kind, start, end time.Time) ([]biometric.Sample, error)
}

// Authorizer asks the user, out of band, to grant read access. It returns the
// grants in effect after the user answered.
type Authorizer interface {
	RequestPermissions(ctx context.Context, kinds []biometric.Kind) (Grants, error)
}
