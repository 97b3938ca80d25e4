package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/kumon-analytics/internal/models"
	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"
)

// AuthConfig defines configuration for operator authentication.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// AuthService authenticates configured operators and issues access tokens.
type AuthService struct {
	operators map[string]models.Operator
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// ParseOperators decodes "username:ROLE:bcrypt-hash" entries.
func ParseOperators(entries []string) ([]models.Operator, error) {
	operators := make([]models.Operator, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, entry := range entries {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("operator entry %d: expected username:ROLE:hash", i+1)
		}
		role := models.Role(strings.ToUpper(parts[1]))
		if role != models.RoleAdmin && role != models.RoleOperator {
			return nil, fmt.Errorf("operator %s: unknown role %q", parts[0], parts[1])
		}
		if _, dup := seen[parts[0]]; dup {
			return nil, fmt.Errorf("operator %s: declared twice", parts[0])
		}
		seen[parts[0]] = struct{}{}
		operators = append(operators, models.Operator{Username: parts[0], Role: role, PasswordHash: parts[2]})
	}
	return operators, nil
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(operators []models.Operator, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	byName := make(map[string]models.Operator, len(operators))
	for _, op := range operators {
		byName[op.Username] = op
	}
	return &AuthService{operators: byName, validator: validate, logger: logger, config: config, now: time.Now}
}

// Login checks the operator credentials and returns a signed access token.
func (s *AuthService) Login(req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	op, ok := s.operators[req.Username]
	if !ok {
		return nil, appErrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	issuedAt := s.now().UTC()
	token, err := s.generateAccessToken(op, issuedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	s.logger.Info("operator logged in", zap.String("operator", op.Username), zap.String("role", string(op.Role)))

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		Operator:    models.OperatorInfo{Username: op.Username, Role: op.Role},
		IssuedAt:    issuedAt,
	}, nil
}

// ValidateToken parses and verifies a JWT access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if _, known := s.operators[claims.Username]; !known {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "operator no longer configured")
	}
	return claims, nil
}

func (s *AuthService) generateAccessToken(op models.Operator, issuedAt time.Time) (string, error) {
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		Username: op.Username,
		Role:     op.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   op.Username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.AccessTokenSecret))
}
