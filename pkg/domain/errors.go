package domain

import "fmt"

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrConflict is returned when a write would violate a uniqueness constraint.
type ErrConflict struct {
	Entity EntityType
	Key    string
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Entity, e.Key)
}
