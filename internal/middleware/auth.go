package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/service/rbac"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/httputil"
	"github.com/jwalitptl/care-portal/pkg/logger"
)

const ContextIdentity = "identity"

// IdentityResolver turns a bearer token into the caller's identity.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (model.Identity, error)
}

type AuthMiddleware struct {
	resolver IdentityResolver
	gate     *rbac.Gate
}

func NewAuthMiddleware(resolver IdentityResolver, gate *rbac.Gate) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
		gate:     gate,
	}
}

// Authenticate verifies the bearer token and stores the caller's identity in
// the gin context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(nil))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(nil))
			return
		}

		identity, err := m.resolver.ResolveIdentity(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		c.Set(ContextIdentity, identity)
		reqLogger := logger.FromContext(c.Request.Context(), logger.Nop()).
			WithFields(map[string]interface{}{"account_id": identity.AccountID.String(), "role": string(identity.Role)})
		c.Request = c.Request.WithContext(reqLogger.WithContext(c.Request.Context()))
		c.Next()
	}
}

// RequirePermission rejects callers whose role lacks perm.
func (m *AuthMiddleware) RequirePermission(perm rbac.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized(nil))
			return
		}
		if err := m.gate.Require(c.Request.Context(), identity, perm); err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(ContextIdentity)
	if !ok {
		return model.Identity{}, false
	}
	identity, ok := v.(model.Identity)
	return identity, ok
}
