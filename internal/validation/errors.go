// Package validation holds the client-side checks that gate each step of
// the portal flows. Failures are local and recoverable: they never involve
// the portal API.
package validation

import (
	"errors"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// FieldError is a single failed check, shown inline next to its field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Message
}

// Collector accumulates field errors for one form.
type Collector struct {
	merr *multierror.Error
}

// Add records a failed check.
func (c *Collector) Add(field, message string) {
	c.merr = multierror.Append(c.merr, FieldError{Field: field, Message: message})
}

// Check records message when ok is false.
func (c *Collector) Check(ok bool, field, message string) {
	if !ok {
		c.Add(field, message)
	}
}

// Merge appends every field error carried by err.
func (c *Collector) Merge(err error) {
	for _, fe := range Fields(err) {
		c.merr = multierror.Append(c.merr, fe)
	}
}

// Err returns nil when every check passed.
func (c *Collector) Err() error {
	if c.merr == nil {
		return nil
	}
	c.merr.ErrorFormat = formatErrors
	return c.merr.ErrorOrNil()
}

func formatErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Fields flattens err into its field errors.
func Fields(err error) []FieldError {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		out := make([]FieldError, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			out = append(out, Fields(e)...)
		}
		return out
	}
	var fe FieldError
	if errors.As(err, &fe) {
		return []FieldError{fe}
	}
	return nil
}

// IsValidation reports whether err carries at least one field error.
func IsValidation(err error) bool {
	return len(Fields(err)) > 0
}

// First returns the first field error message, or "".
func First(err error) string {
	if fields := Fields(err); len(fields) > 0 {
		return fields[0].Message
	}
	return ""
}
