// Package handler holds helpers shared by the HTTP handlers in its
// subpackages.
package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/internal/middleware"
	"github.com/jwalitptl/care-portal/internal/model"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/httputil"
)

// Identity returns the authenticated caller, answering 401 when there is
// none.
func Identity(c *gin.Context) (model.Identity, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
	}
	return id, ok
}

// UUIDParam parses a path parameter, answering 400 when it is not a UUID.
func UUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// UUIDQuery parses an optional query parameter. An absent parameter is nil;
// a malformed one answers 400.
func UUIDQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid "+name, err))
		return nil, false
	}
	return &id, true
}

// Bind decodes a JSON body, answering 400 on failure.
func Bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		httputil.RespondWithBindError(c, err)
		return false
	}
	return true
}
