// Package inputval validates decoded form and JSON input with struct tags
// through waffle's pantry/validate, turning failures into messages fit to
// show a member.
//
//	type boardInput struct {
//		Name string `json:"name" validate:"required,max=80" label:"Name"`
//	}
//	if res := inputval.Validate(in); res.HasErrors() {
//		render(res.First())
//	}
//
// Besides pantry/validate's built-in rules, PinBoard registers username,
// httpurl and theme.
package inputval

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/validate"
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Label   string
	Message string
}

// Result lists the failures in field order. A nil or empty Result passed.
type Result struct {
	Errors []FieldError
}

func (r *Result) HasErrors() bool { return r != nil && len(r.Errors) > 0 }

// First is the message shown on a form; "" when valid.
func (r *Result) First() string {
	if !r.HasErrors() {
		return ""
	}
	return r.Errors[0].Message
}

// All joins every message with "; ".
func (r *Result) All() string {
	if !r.HasErrors() {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

	validatorOnce sync.Once
	validator     *validate.Validator
)

func stringRule(check func(string) bool) func(any) bool {
	return func(v any) bool {
		s, ok := v.(string)
		return ok && check(s)
	}
}

func shared() *validate.Validator {
	validatorOnce.Do(func() {
		validator = validate.New(validate.WithStopOnFirstError())
		validator.RegisterRuleFunc("username", stringRule(IsValidUsername), "username")
		validator.RegisterRuleFunc("httpurl", stringRule(IsValidHTTPURL), "httpurl")
		validator.RegisterRuleFunc("theme", stringRule(models.IsValidTheme), "theme")
	})
	return validator
}

// Validate checks s against its validate tags. Messages use the field's
// label tag, falling back to its name.
func Validate(s any) *Result {
	res := &Result{}
	errs, ok := shared().Struct(s).(validate.Errors)
	if !ok {
		return res
	}
	labels := labelsOf(s)
	for _, e := range errs {
		label := labels[e.Field]
		if label == "" {
			label = e.Field
		}
		res.Errors = append(res.Errors, FieldError{Field: e.Field, Label: label, Message: message(label, e.Rule, e.Param)})
	}
	return res
}

// labelsOf maps each field, keyed the way pantry/validate reports it (json
// name when present), to its label tag.
func labelsOf(s any) map[string]string {
	v := reflect.Indirect(reflect.ValueOf(s))
	if v.Kind() != reflect.Struct {
		return nil
	}
	labels := map[string]string{}
	for _, f := range reflect.VisibleFields(v.Type()) {
		label := f.Tag.Get("label")
		if label == "" {
			continue
		}
		key := f.Name
		if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
			key = name
		}
		labels[key] = label
	}
	return labels
}

func message(label, rule, param string) string {
	switch rule {
	case "required":
		return label + " is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", label, param)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", label, param)
	case "oneof", "enum":
		return fmt.Sprintf("%s must be one of %s.", label, strings.ReplaceAll(param, " ", ", "))
	case "username":
		return label + " must be 3 to 20 letters, digits or underscores."
	case "httpurl":
		return label + " must be an http:// or https:// link."
	case "theme":
		return label + " is not a known theme."
	}
	return label + " is invalid."
}

// IsValidUsername reports whether s is an acceptable handle.
func IsValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// IsValidHTTPURL reports whether s is an absolute http or https URL.
func IsValidHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
