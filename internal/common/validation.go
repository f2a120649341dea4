package common

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// FieldErrors flattens validator failures into field -> failed tag.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			out[fe.Field()] = fe.Tag()
		}
	}
	return out
}
