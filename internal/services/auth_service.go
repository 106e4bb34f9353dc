// Path: internal/services/auth_service.go
package services

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"unibank/internal/models"
	"unibank/pkg/database"
)

const (
	tokenIssuer       = "unibank-ledger"
	invalidCredential = "Could not validate credentials"
)

// AuthService handles user authentication and registration.
type AuthService interface {
	Register(req models.RegisterRequest) (*models.User, error)
	Login(email, password string) (string, error)
	ValidateToken(token string) (*models.Claims, error)
}

// TokenIssuer signs and parses HS256 access tokens.
type TokenIssuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{key: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for user. The subject is the user's email.
func (t *TokenIssuer) Issue(userID uint, email, role string) (string, error) {
	now := t.now()
	claims := &models.Claims{
		UserID: int(userID),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
}

// Parse verifies the signature and expiry of token.
func (t *TokenIssuer) Parse(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return t.key, nil
	})
	if err != nil {
		details := err.Error()
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				details = "Malformed token"
			case ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0:
				details = "Token expired or not yet valid"
			}
		}
		return nil, &AppError{Code: 401, Message: invalidCredential, Details: details, Err: err}
	}
	if !token.Valid || claims.Subject == "" || claims.UserID <= 0 {
		return nil, &AppError{Code: 401, Message: invalidCredential, Details: "Token is not valid"}
	}
	return claims, nil
}

type authService struct {
	db     *gorm.DB
	tokens *TokenIssuer
}

// NewAuthService creates a new AuthService.
func NewAuthService(db *gorm.DB, tokens *TokenIssuer) AuthService {
	return &authService{
		db:     db,
		tokens: tokens,
	}
}

func validateRegistration(req *models.RegisterRequest) error {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if req.Role == "" {
		req.Role = "user"
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		return &AppError{Code: 422, Message: "email: value is not a valid email address", Details: err.Error()}
	}
	if req.FullName == "" {
		return &AppError{Code: 422, Message: "full_name: field required"}
	}
	if req.Password == "" {
		return &AppError{Code: 422, Message: "password: field required"}
	}
	if req.Role != "user" && req.Role != "admin" {
		return &AppError{Code: 422, Message: "role: must be user or admin", Details: req.Role}
	}
	return nil
}

// Register creates a user. Emails are unique.
func (s *authService) Register(req models.RegisterRequest) (*models.User, error) {
	if err := validateRegistration(&req); err != nil {
		return nil, err
	}

	var created database.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&database.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
			return internalError("Failed to check user existence", err)
		}
		if count > 0 {
			return &AppError{Code: 400, Message: "Email already registered", Details: req.Email}
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return internalError("Failed to hash password", err)
		}

		created = database.User{
			Email:          req.Email,
			FullName:       req.FullName,
			HashedPassword: string(hashedPassword),
			Role:           req.Role,
			IsActive:       true,
		}
		if err := tx.Create(&created).Error; err != nil {
			return internalError("Failed to insert user", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	user := toUser(created)
	return &user, nil
}

// Login authenticates a user and returns a JWT.
func (s *authService) Login(email, password string) (string, error) {
	var user database.User
	err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", &AppError{Code: 401, Message: "Incorrect username or password", Details: "User not found"}
		}
		return "", internalError("Failed to query user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return "", &AppError{Code: 401, Message: "Incorrect username or password", Details: "Incorrect password"}
	}
	if !user.IsActive {
		return "", &AppError{Code: 400, Message: "Inactive user", Details: user.Email}
	}

	token, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return "", internalError("Failed to sign token", err)
	}
	return token, nil
}

// ValidateToken verifies the token and that its user still exists and is
// active. The role is taken from the database, not the token.
func (s *authService) ValidateToken(tokenString string) (*models.Claims, error) {
	claims, err := s.tokens.Parse(tokenString)
	if err != nil {
		return nil, err
	}

	var user database.User
	if err := s.db.First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &AppError{Code: 401, Message: invalidCredential, Details: "User no longer exists"}
		}
		return nil, internalError("Failed to query user", err)
	}
	if !user.IsActive || user.Email != claims.Subject {
		return nil, &AppError{Code: 401, Message: invalidCredential, Details: "User inactive or changed"}
	}
	claims.Role = user.Role
	return claims, nil
}
