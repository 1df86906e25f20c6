package store

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when a lookup or update matches no row.
var ErrNotFound = eris.New("store: not found")

// PersistError reports a failed reconciliation write. The transaction was
// rolled back, so the facility's previous data is intact.
type PersistError struct {
	FacilityID string
	Op         string
	Err        error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist facility %s: %s: %v", e.FacilityID, e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

func persistErr(facilityID, op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistError{FacilityID: facilityID, Op: op, Err: err}
}
