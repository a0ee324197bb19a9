package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/popeskul/inbound-messages/internal/api"
)

const (
	msisdnPattern     = `^\+\d+$`
	utcSecondsPattern = `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`

	bodyField = "body"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegisterPattern(v, "msisdn", msisdnPattern)
	mustRegisterPattern(v, "utc_seconds", utcSecondsPattern)

	return v
}

func mustRegisterPattern(v *validator.Validate, tag, pattern string) {
	re := regexp.MustCompile(pattern)
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// decodePayload parses raw into a webhook payload and checks it. Unknown fields are ignored.
func decodePayload(v *validator.Validate, raw []byte) (*api.WebhookPayload, []api.FieldError) {
	var payload api.WebhookPayload

	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, []api.FieldError{decodeFieldError(err)}
	}

	if err := v.Struct(&payload); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return nil, []api.FieldError{{Field: bodyField, Message: err.Error()}}
		}

		fieldErrs := make([]api.FieldError, 0, len(validationErrs))
		for _, fe := range validationErrs {
			fieldErrs = append(fieldErrs, api.FieldError{
				Field:   fe.Field(),
				Message: fieldErrorMessage(fe),
			})
		}
		return nil, fieldErrs
	}

	return &payload, nil
}

func decodeFieldError(err error) api.FieldError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return api.FieldError{Field: bodyField, Message: "must be a JSON object"}
		}
		return api.FieldError{Field: typeErr.Field, Message: fmt.Sprintf("must be of type %s", typeErr.Type)}
	}

	return api.FieldError{Field: bodyField, Message: "invalid JSON"}
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "msisdn":
		return fmt.Sprintf("must match %s", msisdnPattern)
	case "utc_seconds":
		return "must be an ISO-8601 UTC timestamp like 2025-01-15T10:00:00Z"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// peekMessageID returns the message_id of raw if it is a JSON object with a string message_id.
func peekMessageID(raw []byte) string {
	var probe struct {
		MessageID interface{} `json:"message_id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}

	id, _ := probe.MessageID.(string)
	return id
}
