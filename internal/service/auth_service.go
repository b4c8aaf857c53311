package service

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-rewards-api/internal/models"
	appErrors "github.com/noah-isme/sma-rewards-api/pkg/errors"
)

// AuthService issues and validates access tokens for configured service
// accounts (other platform services and admin tooling, not students).
type AuthService struct {
	accounts   map[string]models.ServiceAccount
	secret     []byte
	expiration time.Duration
	issuer     string
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthService constructs the service from configured account entries,
// each a "clientID:bcryptHash:role" triple. Malformed entries are skipped
// with a warning so one bad line cannot take authentication down.
func NewAuthService(entries []string, secret string, expiration time.Duration, issuer string, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	accounts := make(map[string]models.ServiceAccount, len(entries))
	for _, entry := range entries {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			logger.Warn("skipping malformed service account entry")
			continue
		}
		role := models.Role(strings.ToUpper(strings.TrimSpace(parts[2])))
		switch role {
		case models.RoleAdmin, models.RoleService, models.RoleTeacher:
		default:
			role = models.RoleService
		}
		accounts[parts[0]] = models.ServiceAccount{
			ClientID:   parts[0],
			SecretHash: parts[1],
			Role:       role,
		}
	}

	return &AuthService{
		accounts:   accounts,
		secret:     []byte(secret),
		expiration: expiration,
		issuer:     issuer,
		validator:  validate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Login exchanges client credentials for a signed access token.
func (s *AuthService) Login(req models.TokenRequest) (*models.TokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid token request")
	}

	account, ok := s.accounts[req.ClientID]
	if !ok {
		return nil, appErrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.SecretHash), []byte(req.ClientSecret)); err != nil {
		s.logger.Info("failed login attempt", zap.String("client_id", req.ClientID))
		return nil, appErrors.ErrInvalidCredentials
	}

	token, issuedAt, err := s.issueToken(account)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}
	return &models.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.expiration.Seconds()),
		IssuedAt:    issuedAt,
	}, nil
}

// ValidateToken parses and verifies an access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, appErrors.ErrUnauthorized
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.ErrUnauthorized
	}
	return claims, nil
}

func (s *AuthService) issueToken(account models.ServiceAccount) (string, time.Time, error) {
	issuedAt := s.now()
	claims := models.JWTClaims{
		ClientID: account.ClientID,
		Role:     account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ClientID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.expiration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, issuedAt, nil
}
