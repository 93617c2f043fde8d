package service

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Yulikepython/drive-cleaner/internal/model"
	"github.com/Yulikepython/drive-cleaner/pkg/apierror"
)

const tokenIssuer = "drive-cleaner"

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService mints and validates the bearer tokens of the HTTP API. Tokens
// are issued by operators from the CLI; there is no login endpoint.
type AuthService struct {
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

func NewAuthService(jwtSecret string, tokenTTL time.Duration) (*AuthService, error) {
	if strings.TrimSpace(jwtSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}

	return &AuthService{jwtSecret: []byte(jwtSecret), tokenTTL: tokenTTL, now: time.Now}, nil
}

// IssueToken signs a token for subject with role. A zero ttl uses the
// service default.
func (s *AuthService) IssueToken(subject string, role string, ttl time.Duration) (model.IssuedToken, error) {
	subject = strings.TrimSpace(subject)
	role = strings.ToLower(strings.TrimSpace(role))

	if subject == "" {
		return model.IssuedToken{}, apierror.New("BAD_REQUEST", "token subject is required", "", http.StatusBadRequest)
	}
	if role != model.RoleViewer && role != model.RoleOperator {
		return model.IssuedToken{}, apierror.New("BAD_REQUEST", "invalid role", role, http.StatusBadRequest)
	}
	if ttl <= 0 {
		ttl = s.tokenTTL
	}

	now := s.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return model.IssuedToken{}, err
	}

	return model.IssuedToken{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
	}, nil
}

func (s *AuthService) ValidateToken(tokenString string) (*model.AuthClaims, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, apierror.Wrap(model.ErrUnauthorized, "UNAUTHORIZED", "invalid token", http.StatusUnauthorized)
	}

	if claims.Subject == "" {
		return nil, apierror.New("UNAUTHORIZED", "invalid token subject", "", http.StatusUnauthorized)
	}
	if claims.Role != model.RoleViewer && claims.Role != model.RoleOperator {
		return nil, apierror.New("UNAUTHORIZED", "invalid token role", claims.Role, http.StatusUnauthorized)
	}

	return &model.AuthClaims{UserID: claims.Subject, Role: claims.Role, TokenID: claims.ID}, nil
}
