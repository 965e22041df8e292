package dispatch

import (
	"errors"
	"fmt"
)

var (
	ErrNoAction             = errors.New("notification type has no action")
	ErrNotActionable        = errors.New("notification is not actionable")
	ErrConfirmationNotFound = errors.New("confirmation not found or expired")
)

// ValidationError is raised before any request is sent. Message is shown to
// the operator as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// PartialSuccess reports a recreate whose new card exists but whose old card
// could not be deleted. It is logged and otherwise treated as success.
type PartialSuccess struct {
	NewCardID int64
	OldCardID int64
	Err       error
}

func (e *PartialSuccess) Error() string {
	return fmt.Sprintf("card %d created but card %d was not deleted: %v", e.NewCardID, e.OldCardID, e.Err)
}

func (e *PartialSuccess) Unwrap() error {
	return e.Err
}
