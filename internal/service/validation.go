package service

import (
	"errors"
	"strings"

	"github.com/S1riyS/drive-core/server/internal/pkg/errkind"
	"github.com/go-playground/validator/v10"
)

const (
	MaxNameLength        = 255
	MaxCommentLength     = 2000
	forbiddenNameChars   = `<>:"/\|?*`
	filenameValidatorTag = "filename"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation(filenameValidatorTag, func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), forbiddenNameChars)
	})
	return v
}

// nameInput checks blankness on the trimmed name and everything else on the
// name as it will be stored.
type nameInput struct {
	Trimmed string `validate:"required"`
	Name    string `validate:"max=255,filename"`
}

type commentInput struct {
	Body string `validate:"required,max=2000"`
}

// ValidateName checks a file or folder name. Blank names are rejected.
// Surrounding whitespace is kept and counts towards the length limit.
func ValidateName(name string) error {
	err := validate.Struct(nameInput{Trimmed: strings.TrimSpace(name), Name: name})
	if err == nil {
		return nil
	}

	msg := "invalid name"
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Tag() {
		case "required":
			msg = "name must not be empty"
		case "max":
			msg = "name must be at most 255 characters"
		case filenameValidatorTag:
			msg = "name must not contain any of " + forbiddenNameChars
		}
	}
	return &ServiceError{Kind: errkind.InvalidInput, Message: msg}
}

func validateComment(body string) error {
	err := validate.Struct(commentInput{Body: strings.TrimSpace(body)})
	if err == nil {
		return nil
	}

	msg := "invalid comment"
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Tag() {
		case "required":
			msg = "comment must not be empty"
		case "max":
			msg = "comment must be at most 2000 characters"
		}
	}
	return &ServiceError{Kind: errkind.InvalidInput, Message: msg}
}
