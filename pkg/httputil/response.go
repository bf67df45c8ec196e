package httputil

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/care-portal/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithCreated sends a 201 success response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError sends an error response. Errors without an application
// code are reported as internal so that driver text never reaches the client.
// The original error is attached to the context for the request logger.
func RespondWithError(c *gin.Context, err error) {
	_ = c.Error(err)

	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.Internal(err)
	}

	status := appErr.StatusCode()
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    status,
			Kind:    appErr.Kind(),
			Message: appErr.Message,
		},
	})
}

// RespondWithBindError reports a malformed request body or parameter. Field
// rule failures are listed by field name.
func RespondWithBindError(c *gin.Context, err error) {
	RespondWithError(c, errors.Validation(bindMessage(err), err))
}

var ruleMessages = map[string]string{
	"required":           "is required",
	"email":              "must be a valid email address",
	"min":                "is too short",
	"max":                "is too long",
	"datetime":           "must be a date in YYYY-MM-DD form",
	"appointment_type":   "must be online or physical",
	"appointment_status": "must be pending, approved, declined, completed or cancelled",
	"doctor_status":      "must be pending, approved or rejected",
}

func bindMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case stderrors.As(err, &syntaxErr):
			return "request body is not valid JSON"
		case stderrors.As(err, &typeErr):
			return fmt.Sprintf("field %s has the wrong type", typeErr.Field)
		}
		return "invalid request: " + err.Error()
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := ruleMessages[fe.Tag()]
		if !ok {
			msg = "failed " + fe.Tag() + " check"
		}
		parts = append(parts, fe.Field()+" "+msg)
	}
	return strings.Join(parts, "; ")
}
