package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxJSONBody = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Language string `json:"language" validate:"omitempty,max=16"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type resendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type reviewRequest struct {
	Status     string  `json:"status" validate:"required,oneof=pending approved rejected"`
	AdminNotes *string `json:"admin_notes" validate:"omitempty,max=2000"`
}

// decodeJSON reads a JSON body into dst and validates its tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return &validationError{msg: "malformed request body"}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &validationError{msg: describe(verrs)}
		}
		return &validationError{msg: err.Error()}
	}
	return nil
}

func describe(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, field+" must be a valid email")
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		case "min", "max":
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
