// Observability Hub - Event-Driven Observability Ingestion Pipeline
// Copyright 2026 Faruk Tunc (frktunc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/frktunc/observability-hub

package validation

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
)

// Code classifies a validation failure. Codes are stable identifiers and
// are persisted verbatim in dead-letter rows, so they must never change.
type Code string

const (
	// CodeRequired marks a missing mandatory field.
	CodeRequired Code = "VE_Required"

	// CodeFormat marks a field whose value does not match its required shape,
	// such as a malformed UUID or trace identifier.
	CodeFormat Code = "VE_Format"

	// CodeRange marks a numeric or length bound violation.
	CodeRange Code = "VE_Range"

	// CodeEnum marks a value outside its closed set of allowed values.
	CodeEnum Code = "VE_Enum"

	// CodeUnsupportedVersion marks an event whose schema major version the
	// collector does not accept.
	CodeUnsupportedVersion Code = "VE_UnsupportedVersion"
)

// ValidationError describes a single rule violation. Field is the JSON path
// of the offending value, for example "metadata.priority" or "data.message".
type ValidationError struct {
	Field   string `json:"field"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface. The code and field are embedded in
// the message so dead-letter rows stay searchable by either.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
}

// AsValidationError extracts a *ValidationError from err, unwrapping as
// needed. Callers use it to decide between dead-lettering and retrying.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

var (
	eventTypeRe  = regexp.MustCompile(`^(log|metrics|trace)\.[a-z0-9_-]+\.[a-z0-9_-]+$`)
	traceIDRe    = regexp.MustCompile(`^(?:[0-9a-fA-F]{16}|[0-9a-fA-F]{32})$`)
	spanIDRe     = regexp.MustCompile(`^[0-9a-fA-F]{16}$`)
	metricNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9._]*$`)
)

// getValidator returns the shared validator instance. The instance caches
// struct metadata internally and is safe for concurrent use, so a single
// instance serves all workers.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
		_ = validate.RegisterValidation("eventtype", validEventType)
		_ = validate.RegisterValidation("traceid", validTraceID)
		_ = validate.RegisterValidation("spanid", validSpanID)
		_ = validate.RegisterValidation("metricname", validMetricName)
		_ = validate.RegisterValidation("metricvalue", validMetricValue)
	})
	return validate
}

// jsonFieldName reports field names by their json tag so error paths match
// the wire format rather than Go identifiers.
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func validEventType(fl validator.FieldLevel) bool {
	return eventTypeRe.MatchString(fl.Field().String())
}

func validTraceID(fl validator.FieldLevel) bool {
	return traceIDRe.MatchString(fl.Field().String())
}

func validSpanID(fl validator.FieldLevel) bool {
	return spanIDRe.MatchString(fl.Field().String())
}

func validMetricName(fl validator.FieldLevel) bool {
	return metricNameRe.MatchString(fl.Field().String())
}

// validMetricValue accepts a JSON number or an aggregate object carrying at
// least sum and count.
func validMetricValue(fl validator.FieldLevel) bool {
	raw := bytes.TrimSpace(fl.Field().Bytes())
	if len(raw) == 0 {
		return false
	}
	if raw[0] == '{' {
		var agg struct {
			Sum   *float64 `json:"sum"`
			Count *int64   `json:"count"`
		}
		if err := json.Unmarshal(raw, &agg); err != nil {
			return false
		}
		return agg.Sum != nil && agg.Count != nil
	}
	var n float64
	return json.Unmarshal(raw, &n) == nil
}

// tagCodes maps validator tags to stable failure codes.
var tagCodes = map[string]Code{
	"required":    CodeRequired,
	"uuid4":       CodeFormat,
	"semver":      CodeFormat,
	"eventtype":   CodeFormat,
	"traceid":     CodeFormat,
	"spanid":      CodeFormat,
	"metricname":  CodeFormat,
	"metricvalue": CodeFormat,
	"min":         CodeRange,
	"max":         CodeRange,
	"gte":         CodeRange,
	"lte":         CodeRange,
	"oneof":       CodeEnum,
}

// messageTemplates maps validator tags to human-readable message templates.
// Tags with parameters (oneof, min, max, gte, lte) are rendered separately.
var messageTemplates = map[string]string{
	"required":    "%s is required",
	"uuid4":       "%s must be a canonical UUIDv4",
	"semver":      "%s must be a semantic version in MAJOR.MINOR.PATCH form",
	"eventtype":   "%s must match family.entity.action with family log, metrics, or trace",
	"traceid":     "%s must be 16 or 32 hex characters",
	"spanid":      "%s must be 16 hex characters",
	"metricname":  "%s must start with a letter and contain only letters, digits, dots, and underscores",
	"metricvalue": "%s must be a number or an aggregate object with sum and count",
}

// checkStruct runs structural validation and translates the first failure.
// prefix is prepended to field paths so payload violations report under
// "data." regardless of the Go type the payload decoded into.
func checkStruct(s interface{}, prefix string) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return toValidationError(verrs[0], prefix)
	}
	return &ValidationError{Field: prefix, Code: CodeFormat, Message: "validation failed"}
}

func toValidationError(fe validator.FieldError, prefix string) *ValidationError {
	field := prefix + trimNamespaceRoot(fe.Namespace())
	code, ok := tagCodes[fe.Tag()]
	if !ok {
		code = CodeFormat
	}
	return &ValidationError{Field: field, Code: code, Message: translateFieldError(fe, field)}
}

// trimNamespaceRoot drops the root struct segment from a validator
// namespace, turning "Event.metadata.priority" into "metadata.priority".
func trimNamespaceRoot(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func translateFieldError(fe validator.FieldError, field string) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "max", "gte", "lte":
		return translateBound(fe, field)
	}
	if tmpl, ok := messageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	return fmt.Sprintf("%s is invalid", field)
}

// translateBound renders min/max/gte/lte failures. For strings the bound
// applies to length, for numeric kinds to the value itself.
func translateBound(fe validator.FieldError, field string) string {
	bound := "at least"
	if fe.Tag() == "max" || fe.Tag() == "lte" {
		bound = "at most"
	}

	kind := fe.Kind()
	if kind == reflect.Ptr {
		kind = fe.Type().Elem().Kind()
	}
	if kind == reflect.String {
		return fmt.Sprintf("%s length must be %s %s", field, bound, fe.Param())
	}
	return fmt.Sprintf("%s must be %s %s", field, bound, fe.Param())
}
