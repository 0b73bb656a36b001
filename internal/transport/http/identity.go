package httptransport

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mssola/useragent"

	"backoffice/internal/tenant"
	dErrors "backoffice/pkg/domain-errors"
	"backoffice/pkg/platform/httputil"
	"backoffice/pkg/requestcontext"
)

// Identity headers. Without a bearer token they are only honoured when the
// router trusts identity headers (a gateway that authenticates upstream, or
// local development). X-Tenant-ID also selects the tenant for a bearer token.
const (
	HeaderUserID       = "X-User-ID"
	HeaderUserEmail    = "X-User-Email"
	HeaderUserRole     = "X-User-Role"
	HeaderUserTenantID = "X-User-Tenant-ID"
	HeaderSessionID    = "X-Session-ID"
	HeaderTenantID     = "X-Tenant-ID"
	HeaderTenantRegion = "X-Tenant-Region"
	HeaderTenantLocale = "X-Tenant-Locale"
)

// Claims is the bearer token payload.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	TenantID  string `json:"tenant_id"`
	SessionID string `json:"sid,omitempty"`
	Region    string `json:"region,omitempty"`
	Locale    string `json:"locale,omitempty"`
}

// TokenVerifier validates HS256 bearer tokens.
type TokenVerifier struct {
	key []byte
}

func NewTokenVerifier(signingKey string) (*TokenVerifier, error) {
	if signingKey == "" {
		return nil, errors.New("jwt signing key is required")
	}
	return &TokenVerifier{key: []byte(signingKey)}, nil
}

// Verify parses and validates a token. Expiry is enforced when present.
func (v *TokenVerifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" || claims.TenantID == "" {
		return nil, errors.New("token is missing sub or tenant_id")
	}
	return claims, nil
}

// Sign issues a token for claims. Used by tooling and tests.
func (v *TokenVerifier) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

// Identity enters the caller's tenant and user into the request context.
// Requests without credentials pass through anonymously; services reject
// them with UNAUTHORIZED where identity is required. Header identity counts
// as credentials only when trustHeaders is set. A user whose tenant differs
// from the selected tenant is rejected with 401.
func Identity(verifier *TokenVerifier, trustHeaders bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			info, user, ok, err := identityFromRequest(r, verifier, trustHeaders)
			if err != nil {
				if logger != nil {
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err,
						"request_id", requestcontext.RequestID(ctx),
					)
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx = tenant.WithTenant(ctx, info)
			if user.UserID != "" {
				ctx, err = tenant.WithUser(ctx, user)
				if err != nil {
					if logger != nil {
						logger.WarnContext(ctx, "unauthorized access - tenant mismatch",
							"user_id", user.UserID,
							"tenant_id", info.ID,
							"request_id", requestcontext.RequestID(ctx),
						)
					}
					httputil.WriteError(w, err)
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func identityFromRequest(r *http.Request, verifier *TokenVerifier, trustHeaders bool) (tenant.TenantInfo, tenant.UserContext, bool, error) {
	ctx := r.Context()
	user := tenant.UserContext{
		DeviceID:   requestcontext.DeviceID(ctx),
		DeviceName: deviceName(requestcontext.UserAgent(ctx)),
		IP:         requestcontext.ClientIP(ctx),
	}

	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		if verifier == nil {
			return tenant.TenantInfo{}, user, false, errors.New("bearer tokens are not accepted")
		}
		claims, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			return tenant.TenantInfo{}, user, false, err
		}
		user.UserID = claims.Subject
		user.Email = claims.Email
		user.Role = claims.Role
		user.TenantID = claims.TenantID
		user.SessionID = claims.SessionID
		info := tenant.TenantInfo{ID: claims.TenantID, Region: claims.Region, Locale: claims.Locale}
		if selected := r.Header.Get(HeaderTenantID); selected != "" {
			info.ID = selected
		}
		return info, user, true, nil
	}

	tenantID := r.Header.Get(HeaderTenantID)
	if !trustHeaders || tenantID == "" {
		return tenant.TenantInfo{}, user, false, nil
	}
	info := tenant.TenantInfo{
		ID:     tenantID,
		Region: r.Header.Get(HeaderTenantRegion),
		Locale: r.Header.Get(HeaderTenantLocale),
	}
	user.UserID = r.Header.Get(HeaderUserID)
	user.Email = r.Header.Get(HeaderUserEmail)
	user.Role = r.Header.Get(HeaderUserRole)
	user.SessionID = firstNonEmpty(r.Header.Get(HeaderSessionID), requestcontext.SessionID(ctx))
	user.TenantID = firstNonEmpty(r.Header.Get(HeaderUserTenantID), tenantID)
	return info, user, true, nil
}

// deviceName renders a short label such as "Firefox on Linux".
func deviceName(userAgent string) string {
	if userAgent == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	os := ua.OS()
	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	default:
		return os
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
