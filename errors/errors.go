package errors

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Errors combines multiple errors into a single error value. The zero value is empty and ready to use.
type Errors []error

// Addf appends a formatted error
func (e *Errors) Addf(format string, formatArgs ...interface{}) {
	*e = append(*e, errors.Errorf(format, formatArgs...))
}

// Add appends an error if it is not nil. Nested Errors are flattened.
// Returns true if err was nil
func (e *Errors) Add(err error) bool {
	if err == nil {
		return true
	}
	if errs, ok := err.(Errors); ok {
		*e = append(*e, errs...)
	} else {
		*e = append(*e, err)
	}
	return false
}

// ErrOrNil returns nil for an empty list, the only error for a list of one, and e otherwise
func (e Errors) ErrOrNil() error {
	switch len(e) {
	case 0:
		return nil
	case 1:
		return e[0]
	default:
		return e
	}
}

// Strings returns each error's message
func (e Errors) Strings() []string {
	messages := make([]string, 0, len(e))
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return messages
}

func (e Errors) Error() string {
	return strings.Join(e.Strings(), "; ")
}

// MarshalJSON encodes each error as {"Description": "..."} unless it knows how to encode itself
func (e Errors) MarshalJSON() ([]byte, error) {
	errs := make([]interface{}, 0, len(e))
	for _, err := range e {
		switch err := err.(type) {
		case json.Marshaler:
			errs = append(errs, err)
		default:
			errs = append(errs, map[string]string{"Description": err.Error()})
		}
	}
	return json.Marshal(errs)
}
