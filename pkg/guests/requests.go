package guests

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/errors"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/models"
)

var validate = newValidator()

// newValidator reports fields by their json or query name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// CreateGuestRequest creates a guest from raw phone input. An empty name stores the pending
// placeholder.
type CreateGuestRequest struct {
	Name    string      `json:"name" validate:"max=120"`
	Phone   string      `json:"phone" validate:"required,max=32"`
	Tier    models.Tier `json:"tier" validate:"omitempty,oneof=Bronze Silver Gold Platinum"`
	Consent bool        `json:"consent"`
}

// RenameGuestRequest carries the new display name.
type RenameGuestRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

// ListRequest selects a page of guests. A non-empty Search switches to search mode, which
// ignores PageSize, Cursor and Sort.
type ListRequest struct {
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=500"`
	Cursor   string `query:"cursor"`
	Sort     string `query:"sort" validate:"omitempty,oneof=phone name createdAt engagement lastVisit totalSpent visits"`
	Order    string `query:"order" validate:"omitempty,oneof=asc desc"`
	Search   string `query:"search" validate:"max=120"`
}

// GuestPage is one page of enriched guests.
type GuestPage struct {
	Items       []models.GuestWithMetrics `json:"items"`
	NextCursor  string                    `json:"nextCursor,omitempty"`
	HasMore     bool                      `json:"hasMore"`
	PartialSort bool                      `json:"partialSort"`
	Mode        string                    `json:"mode"`
	Truncated   bool                      `json:"truncated,omitempty"`
}

// Validate checks a request struct and reports the first failing field as a ValidationError.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return apperrors.NewValidationErrorf(fe.Field(), "failed '%s' rule (%s)", fe.Tag(), fe.Param())
		}
		return apperrors.NewValidationErrorf(fe.Field(), "failed '%s' rule", fe.Tag())
	}
	return apperrors.NewValidationError("", err.Error())
}
