package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/sellerflow/internal/errs"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errs.New(errs.ErrNotFound, "route_not_found")
	ErrInvalidRequest = errs.New(errs.ErrValidation, "invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

// bindError names the offending field when a body decodes but a value has
// the wrong JSON type, e.g. a quantity sent as text.
func bindError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return newValidationError(typeErr.Field, "invalid_field_type", "expected "+typeErr.Type.String())
	}
	return invalidRequestError()
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

type kindStatus struct {
	kind    error
	status  int
	message string
}

// statusByKind maps every domain error kind to its HTTP status. Specific
// codes travel in the payload so clients can tell them apart.
var statusByKind = []kindStatus{
	{errs.ErrValidation, http.StatusBadRequest, "validation error"},
	{errs.ErrConfiguration, http.StatusUnprocessableEntity, "configuration error"},
	{errs.ErrConflict, http.StatusConflict, "conflict"},
	{errs.ErrAlreadyDecided, http.StatusConflict, "approval request already decided"},
	{errs.ErrPermission, http.StatusForbidden, "forbidden"},
	{errs.ErrNotFound, http.StatusNotFound, "not found"},
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    errs.ErrValidation.Error(),
			Code:    vErr.Errors[0].Code,
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return http.StatusNotFound, errorPayload{
			Type:    errs.ErrNotFound.Error(),
			Code:    errs.ErrNotFound.Error(),
			Message: "not found",
		}
	}

	for _, ks := range statusByKind {
		if errors.Is(err, ks.kind) {
			return ks.status, errorPayload{
				Type:    ks.kind.Error(),
				Code:    errs.Code(err),
				Message: ks.message,
			}
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

// classifyErrorForLog returns the error type and code logged with a request.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return "internal_error", "internal_error"
	}
	return payload.Type, payload.Code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil && len(vErr.Errors) > 0 {
		return vErr
	}
	return nil
}
