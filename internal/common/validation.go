package common

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared struct validator.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct runs tag validation and folds failures into one InvalidInput error.
func ValidateStruct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return InvalidInput("validation", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return InvalidInput(strings.Join(msgs, "; "), ErrValidation)
}

// ValidateActor checks an opaque actor identifier passed into a mutating call.
func ValidateActor(actorID string) error {
	if err := Validator().Var(actorID, "required,max=128"); err != nil {
		return InvalidInput("actor id is required and at most 128 characters", ErrValidation)
	}
	return nil
}
