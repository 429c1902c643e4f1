// Package errors defines the guest service error taxonomy and its HTTP mapping.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// HTTPConvertible is implemented by every error in this package.
type HTTPConvertible interface {
	error
	ToHTTPError() *httperror.HTTPError
}

// NotFoundError is a point read miss.
type NotFoundError struct {
	Resource string
	ID       string
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Resource, e.ID)
}

func (e *NotFoundError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusNotFound, e.Error()).
		AddMetaValue("resource", e.Resource).
		AddMetaValue("id", e.ID)
}

// DuplicateIdentityError is returned when creating a guest whose normalized key already exists.
type DuplicateIdentityError struct {
	ID string
}

func NewDuplicateIdentityError(id string) *DuplicateIdentityError {
	return &DuplicateIdentityError{ID: id}
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("guest with phone number '%s' already exists", e.ID)
}

func (e *DuplicateIdentityError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusConflict, e.Error()).AddMetaValue("id", e.ID)
}

// CollectionUnavailableError marks a target collection that is missing or unreadable.
// It is soft: logged and skipped, never fatal to a propagation.
type CollectionUnavailableError struct {
	Collection string
	Err        error
}

func NewCollectionUnavailableError(collection string, err error) *CollectionUnavailableError {
	return &CollectionUnavailableError{Collection: collection, Err: err}
}

func (e *CollectionUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("collection '%s' is unavailable", e.Collection)
	}
	return fmt.Sprintf("collection '%s' is unavailable: %v", e.Collection, e.Err)
}

func (e *CollectionUnavailableError) Unwrap() error {
	return e.Err
}

func (e *CollectionUnavailableError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusServiceUnavailable, e.Error()).AddMetaValue("collection", e.Collection)
}

// PartialPropagationError reports the collections that failed during a fan-out update.
// Failures maps collection name to the error message recorded for it.
type PartialPropagationError struct {
	GuestID  string
	Failures map[string]string
}

func NewPartialPropagationError(guestID string, failures map[string]string) *PartialPropagationError {
	return &PartialPropagationError{GuestID: guestID, Failures: failures}
}

// Collections returns the failed collection names in sorted order.
func (e *PartialPropagationError) Collections() []string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *PartialPropagationError) Error() string {
	return fmt.Sprintf("propagation for guest '%s' failed in %d collection(s): %s",
		e.GuestID, len(e.Failures), strings.Join(e.Collections(), ", "))
}

func (e *PartialPropagationError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusMultiStatus, e.Error()).
		AddMetaValue("guest_id", e.GuestID).
		AddMetaValue("failed_collections", strings.Join(e.Collections(), ","))
}

// ValidationError is a malformed phone number or a missing required field.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func NewValidationErrorf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusBadRequest, e.Error()).AddMetaValue("field", e.Field)
}

// ToHTTPError converts the first taxonomy error found in err's chain. Other errors are
// returned unchanged.
func ToHTTPError(err error) error {
	if err == nil {
		return nil
	}
	var convertible HTTPConvertible
	if stderrors.As(err, &convertible) {
		return convertible.ToHTTPError()
	}
	return err
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return stderrors.As(err, &target)
}

func IsDuplicateIdentity(err error) bool {
	var target *DuplicateIdentityError
	return stderrors.As(err, &target)
}

func IsCollectionUnavailable(err error) bool {
	var target *CollectionUnavailableError
	return stderrors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return stderrors.As(err, &target)
}
