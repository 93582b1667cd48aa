package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/avolkov/authgate/internal/common"
	"github.com/avolkov/authgate/internal/server/models"
)

// decodeJSON reads the request body into dst. A missing or malformed body is
// a validation failure, not an internal one.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty request body", common.ErrValidation)
		}
		return fmt.Errorf("%w: malformed request body", common.ErrValidation)
	}
	return nil
}

func stringEquals(expected string, message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != expected {
			return errors.New(message)
		}
		return nil
	}
}

type registerRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 50)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 50)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&r.PasswordConfirm,
			validation.Required,
			validation.By(stringEquals(r.Password, "passwords do not match")),
		),
	)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// updateProfileRequest carries a partial update; absent fields stay untouched,
// which is why every field is a pointer.
type updateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
}

func (r updateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.NilOrNotEmpty, validation.Length(1, 50)),
		validation.Field(&r.LastName, validation.NilOrNotEmpty, validation.Length(1, 50)),
		validation.Field(&r.Email, validation.NilOrNotEmpty, is.Email),
	)
}

func (r updateProfileRequest) toUpdate() models.UserUpdate {
	return models.UserUpdate{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
	}
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (r updateRoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required, validation.In(models.RoleUser, models.RoleAdmin)),
	)
}
