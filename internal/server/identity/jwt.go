package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/dmitrijs2005/cloudvault/internal/common"
	"github.com/dmitrijs2005/cloudvault/internal/logging"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of OIDC ID-token claims CloudVault reads.
type Claims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// JWTProvider verifies tokens locally, either with a shared HMAC secret or
// with the provider's published JWKS.
type JWTProvider struct {
	keyfunc jwt.Keyfunc
	methods []string
	issuer  string
	leeway  time.Duration
}

var _ Provider = (*JWTProvider)(nil)

// NewHMACProvider accepts HS256 tokens signed with secret.
func NewHMACProvider(secret []byte, issuer string) *JWTProvider {
	return &JWTProvider{
		keyfunc: func(*jwt.Token) (any, error) { return secret, nil },
		methods: []string{jwt.SigningMethodHS256.Alg()},
		issuer:  issuer,
		leeway:  30 * time.Second,
	}
}

// NewKeyfuncProvider accepts RS256 tokens whose keys kf resolves.
func NewKeyfuncProvider(kf keyfunc.Keyfunc, issuer string) *JWTProvider {
	return &JWTProvider{
		keyfunc: kf.Keyfunc,
		methods: []string{"RS256"},
		issuer:  issuer,
		leeway:  30 * time.Second,
	}
}

// NewJWKSProvider fetches and periodically refreshes the JWKS at jwksURL.
// The first fetch may fail; keys are retried in the background so the
// server can start before the provider is reachable.
func NewJWKSProvider(jwksURL, issuer string, logger logging.Logger) (*JWTProvider, error) {
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: 10 * time.Second},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           time.Hour,
		RefreshErrorHandler: func(ctx context.Context, err error) {
			logger.Error(ctx, "jwks refresh failed", "url", jwksURL, "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jwks storage: %w", err)
	}

	kf, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("jwks keyfunc: %w", err)
	}
	return NewKeyfuncProvider(kf, issuer), nil
}

// CurrentUser verifies token (with or without a "Bearer " prefix).
func (p *JWTProvider) CurrentUser(_ context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, common.ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(p.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(p.leeway),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, p.keyfunc, opts...)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", common.ErrInvalidToken)
	}

	return &Identity{
		ID:            claims.Subject,
		Email:         claims.Email,
		FirstName:     claims.GivenName,
		LastName:      claims.FamilyName,
		EmailVerified: claims.EmailVerified,
		ExpiresAt:     claims.ExpiresAt.Time,
	}, nil
}

// IssueHMACToken mints an HS256 token for id. It stands in for the identity
// provider in development mode and tests.
func IssueHMACToken(id Identity, secret []byte, issuer string, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
		GivenName:     id.FirstName,
		FamilyName:    id.LastName,
	})
	return token.SignedString(secret)
}
