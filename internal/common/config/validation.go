package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ValidationError converts the error returned by validator.Struct into one readable error per invalid field.
// Errors that did not come from the validator are returned unchanged.
func ValidationError(err error) error {
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	var result *multierror.Error
	for _, fieldErr := range validationErrors {
		fieldName := stripPrefix(fieldErr.Namespace())
		switch fieldErr.Tag() {
		case "required":
			result = multierror.Append(result, fmt.Errorf("field %s is required but was not found", fieldName))
		default:
			result = multierror.Append(result, fmt.Errorf("field %s has invalid value %v: %s", fieldName, fieldErr.Value(), fieldErr.Tag()))
		}
	}
	return result.ErrorOrNil()
}

// LogValidationErrors logs one line per invalid field.
func LogValidationErrors(err error) {
	var merr *multierror.Error
	if errors.As(ValidationError(err), &merr) {
		for _, e := range merr.Errors {
			log.Errorf("ConfigError: %s", e)
		}
	} else if err != nil {
		log.Errorf("ConfigError: %s", err)
	}
}

func stripPrefix(s string) string {
	if idx := strings.Index(s, "."); idx != -1 {
		return s[idx+1:]
	}
	return s
}
