package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

const (
	OrganisationIDHeader = "X-Organisation-ID"
	LocationIDHeader     = "X-Location-ID"
	ActorIDHeader        = "X-Actor-ID"

	ScopeKey = "scope"
)

// Scope resolves the tenant scope from headers and rejects requests without a
// valid organisation. An absent location means organisation-wide.
func Scope() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := uuid.Parse(strings.TrimSpace(c.GetHeader(OrganisationIDHeader)))
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "INVALID_SCOPE", OrganisationIDHeader+" must be a UUID")
			return
		}

		var locationID *uuid.UUID
		if raw := strings.TrimSpace(c.GetHeader(LocationIDHeader)); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				abortWithError(c, http.StatusBadRequest, "INVALID_SCOPE", LocationIDHeader+" must be a UUID")
				return
			}
			locationID = &id
		}

		scope, err := shared.NewScope(orgID, locationID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "INVALID_SCOPE", err.Error())
			return
		}

		c.Set(ScopeKey, scope)
		c.Next()
	}
}

// GetScope returns the scope resolved by the Scope middleware
func GetScope(c *gin.Context) (shared.Scope, bool) {
	v, exists := c.Get(ScopeKey)
	if !exists {
		return shared.Scope{}, false
	}
	scope, ok := v.(shared.Scope)
	return scope, ok
}

// GetActor identifies the operator behind the request. Empty when the header is missing.
func GetActor(c *gin.Context) shared.Principal {
	id := strings.TrimSpace(c.GetHeader(ActorIDHeader))
	if id == "" {
		return shared.Principal{}
	}
	return shared.Principal{Type: shared.PrincipalUser, ID: id}
}
