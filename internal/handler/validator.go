package handler

import "github.com/go-playground/validator/v10"

// Validator adapts go-playground validation to echo's Validator interface.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds the validator used for entity payloads.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate checks the struct tags on the payload.
func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}
