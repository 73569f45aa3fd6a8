package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/atelier-erp/backend/internal/infrastructure/auth"
	"github.com/atelier-erp/backend/internal/infrastructure/logger"
	"github.com/atelier-erp/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Identity headers accepted when header identity is enabled
const (
	TenantIDHeader = "X-Tenant-ID"
	BranchIDHeader = "X-Branch-ID"
	UserIDHeader   = "X-User-ID"

	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	identityKey         = "identity"
)

// IdentityConfig configures the Identity middleware
type IdentityConfig struct {
	JWTService *auth.JWTService
	// AllowHeaders accepts X-Tenant-ID, X-Branch-ID and X-User-ID when no
	// token is sent. Development only.
	AllowHeaders bool
	Logger       *zap.Logger
}

var errMissingIdentity = errors.New("missing identity")

// Identity resolves the caller's tenant, branch and user from a bearer token,
// or from identity headers when allowed, and rejects the request otherwise.
// The identity is stored in the gin context, the request logger context and
// the current span.
func Identity(cfg IdentityConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		id, err := resolveIdentity(c, cfg)
		if err != nil {
			log.Warn("Authentication failed",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", GetRequestID(c)),
			)
			abortUnauthorized(c, err)
			return
		}

		c.Set(identityKey, id)
		ctx := logger.WithIdentity(c.Request.Context(),
			id.TenantID.String(), id.BranchID.String(), id.UserID.String())
		c.Request = c.Request.WithContext(ctx)

		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(
				attribute.String("tenant_id", id.TenantID.String()),
				attribute.String("branch_id", id.BranchID.String()),
				attribute.String("user_id", id.UserID.String()),
			)
		}

		c.Next()
	}
}

func resolveIdentity(c *gin.Context, cfg IdentityConfig) (auth.Identity, error) {
	if header := c.GetHeader(authorizationHeader); header != "" {
		if cfg.JWTService == nil {
			return auth.Identity{}, auth.ErrInvalidToken
		}
		token, ok := strings.CutPrefix(header, bearerPrefix)
		if !ok || token == "" {
			return auth.Identity{}, auth.ErrInvalidToken
		}
		claims, err := cfg.JWTService.ValidateAccessToken(token)
		if err != nil {
			return auth.Identity{}, err
		}
		return claims.Identity()
	}

	if !cfg.AllowHeaders {
		return auth.Identity{}, errMissingIdentity
	}
	return identityFromHeaders(c)
}

func identityFromHeaders(c *gin.Context) (auth.Identity, error) {
	var id auth.Identity
	for _, h := range []struct {
		name string
		dst  *uuid.UUID
	}{
		{TenantIDHeader, &id.TenantID},
		{BranchIDHeader, &id.BranchID},
		{UserIDHeader, &id.UserID},
	} {
		value := c.GetHeader(h.name)
		if value == "" {
			return auth.Identity{}, errMissingIdentity
		}
		parsed, err := uuid.Parse(value)
		if err != nil {
			return auth.Identity{}, auth.ErrInvalidClaims
		}
		*h.dst = parsed
	}
	return id, nil
}

func abortUnauthorized(c *gin.Context, err error) {
	code, message := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, errMissingIdentity):
	default:
		code, message = dto.ErrCodeTokenInvalid, "Invalid token"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}

// GetIdentity returns the identity resolved by Identity
func GetIdentity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}
