package shopping

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/pantry/internal/model"
)

// ErrInvalidStatus is returned for a status outside the four list states.
var ErrInvalidStatus = errors.New("invalid status")

type Status string

const (
	StatusPending  Status = "pending"
	StatusSelected Status = "selected"
	StatusFound    Status = "found"
	StatusNotFound Status = "not_found"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSelected, StatusFound, StatusNotFound:
		return true
	}
	return false
}

// Entry converts s to the stored representation.
func (s Status) Entry() model.EntryStatus { return model.EntryStatus(s) }

// Done reports whether entries in s are archived by CompleteShopping.
func (s Status) Done() bool { return s == StatusFound || s == StatusNotFound }

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Transition checks a manual status change. Any of the four states may move
// to any other; leaving the list only happens by completing the session.
func Transition(from, to Status) error {
	if !from.Valid() {
		return fmt.Errorf("%w: from %q", ErrInvalidStatus, from)
	}
	if !to.Valid() {
		return fmt.Errorf("%w: to %q", ErrInvalidStatus, to)
	}
	return nil
}
