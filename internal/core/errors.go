package core

import (
	"errors"
	"fmt"

	"mvpplanner/pkg/domain"
)

// ErrInvalidTarget is returned when a mutation references an MVP, measure or
// clinician that is not present in the loaded data. The mutation is rejected
// without side effects.
type ErrInvalidTarget struct {
	Entity domain.EntityType
	ID     string
}

func (e ErrInvalidTarget) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s id required", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is lets callers match any invalid target with errors.Is(err, ErrInvalidTarget{}).
func (e ErrInvalidTarget) Is(target error) bool {
	_, ok := target.(ErrInvalidTarget)
	return ok
}

// ErrUnknownCollection is returned when a record collection name is not one of
// the nine planner collections.
var ErrUnknownCollection = errors.New("unknown collection")

// IsInvalidTarget reports whether err wraps an ErrInvalidTarget.
func IsInvalidTarget(err error) bool {
	return errors.Is(err, ErrInvalidTarget{})
}
