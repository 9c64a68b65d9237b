package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linesmerrill/region-chat-api/models"
)

// ErrInvalidAgentToken is returned for tokens that do not name an agent
var ErrInvalidAgentToken = errors.New("invalid agent token")

const agentTokenType = "agent"

type agentContextKey struct{}

// MiddlewareJWT authenticates agents by a signed bearer token
type MiddlewareJWT struct {
	Secret []byte
}

// Middleware rejects requests without a valid agent token and stores the
// agent's connection on the request context
func (m MiddlewareJWT) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := ParseAgentToken(m.Secret, bearerToken(r))
		if err != nil {
			zap.S().Errorw("unauthorized",
				"url", r.URL,
				"error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		zap.S().Debugw("agent authenticated", "agentID", conn.AgentID, "region", conn.RegionHandle)
		next.ServeHTTP(w, r.WithContext(WithAgent(r.Context(), conn)))
	})
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter for websocket clients that cannot set headers
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// IssueAgentToken signs a token for conn valid for ttl
func IssueAgentToken(secret []byte, conn models.Connection, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":    conn.AgentID.String(),
		"name":   conn.Name,
		"region": strconv.FormatUint(conn.RegionHandle, 10),
		"child":  conn.IsChild,
		"typ":    agentTokenType,
		"iat":    now.Unix(),
		"exp":    now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseAgentToken validates a signed agent token and returns the
// connection it describes
func ParseAgentToken(secret []byte, raw string) (models.Connection, error) {
	if raw == "" {
		return models.Connection{}, fmt.Errorf("%w: missing token", ErrInvalidAgentToken)
	}
	if len(secret) == 0 {
		return models.Connection{}, errors.New("agent token secret is not configured")
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return models.Connection{}, fmt.Errorf("%w: %v", ErrInvalidAgentToken, err)
	}

	if typ, _ := claims["typ"].(string); typ != agentTokenType {
		return models.Connection{}, fmt.Errorf("%w: unexpected typ %q", ErrInvalidAgentToken, typ)
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return models.Connection{}, fmt.Errorf("%w: %v", ErrInvalidAgentToken, err)
	}
	agentID, err := uuid.Parse(sub)
	if err != nil {
		return models.Connection{}, fmt.Errorf("%w: subject is not an agent id", ErrInvalidAgentToken)
	}
	regionClaim, _ := claims["region"].(string)
	region, err := strconv.ParseUint(regionClaim, 10, 64)
	if err != nil {
		return models.Connection{}, fmt.Errorf("%w: bad region", ErrInvalidAgentToken)
	}

	conn := models.Connection{
		AgentID:      agentID,
		RegionHandle: region,
	}
	conn.Name, _ = claims["name"].(string)
	conn.IsChild, _ = claims["child"].(bool)
	return conn, nil
}

// WithAgent stores the authenticated agent on ctx
func WithAgent(ctx context.Context, conn models.Connection) context.Context {
	return context.WithValue(ctx, agentContextKey{}, conn)
}

// AgentFromContext returns the agent stored by the middleware
func AgentFromContext(ctx context.Context) (models.Connection, bool) {
	conn, ok := ctx.Value(agentContextKey{}).(models.Connection)
	return conn, ok
}
