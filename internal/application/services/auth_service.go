package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskmaster/taskboard/internal/application/security"
	"github.com/taskmaster/taskboard/internal/domain/entities"
	"github.com/taskmaster/taskboard/internal/infrastructure/config"
	"github.com/taskmaster/taskboard/internal/infrastructure/logger"
	"github.com/taskmaster/taskboard/internal/ports"
)

// Claims represents the JWT claims
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// dummyHash is compared against when the email is unknown, so that both
// login failures cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing-equalizer"), bcrypt.MinCost)

// AuthService handles authentication operations
type AuthService struct {
	userRepo   ports.UserRepository
	cache      ports.CacheRepository
	auditor    *security.Auditor
	jwtConfig  config.JWTConfig
	bcryptCost int
	logger     *logger.Logger
	now        func() time.Time
}

var _ ports.AuthService = (*AuthService)(nil)

// NewAuthService creates a new auth service
func NewAuthService(userRepo ports.UserRepository, cache ports.CacheRepository, auditor *security.Auditor, jwtConfig config.JWTConfig, bcryptCost int, logger *logger.Logger) *AuthService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		userRepo:   userRepo,
		cache:      cache,
		auditor:    auditor,
		jwtConfig:  jwtConfig,
		bcryptCost: bcryptCost,
		logger:     logger.WithComponent("auth"),
		now:        time.Now,
	}
}

// Register creates a new user account
func (s *AuthService) Register(ctx context.Context, req ports.RegisterRequest) (*ports.AuthResponse, error) {
	email := entities.NormalizeEmail(req.Email)

	// Check if user already exists
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		s.auditor.LogSuspiciousActivity(ctx, security.ActivityDuplicateRegistration,
			fmt.Sprintf("Registration attempt with existing email: %s", email), "")
		return nil, entities.ErrEmailTaken
	} else if !errors.Is(err, entities.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user, err := s.CreateUser(ctx, req.Name, email, req.Password)
	if err != nil {
		if errors.Is(err, entities.ErrEmailTaken) {
			s.auditor.LogSuspiciousActivity(ctx, security.ActivityDuplicateRegistration,
				fmt.Sprintf("Registration attempt with existing email: %s", email), "")
		}
		return nil, err
	}

	s.logger.LogUserAction(user.ID, "register", map[string]interface{}{"email": user.Email})

	token, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &ports.AuthResponse{ID: user.ID, Name: user.Name, Email: user.Email, Token: token}, nil
}

// CreateUser hashes the password and stores a new user. It is shared by
// registration and the user create command.
func (s *AuthService) CreateUser(ctx context.Context, name, email, password string) (*entities.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entities.User{
		ID:           entities.NewID(),
		Name:         name,
		Email:        entities.NormalizeEmail(email),
		PasswordHash: string(hashedPassword),
		CreatedAt:    s.now().UTC(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, entities.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login authenticates a user and returns a token
func (s *AuthService) Login(ctx context.Context, req ports.LoginRequest) (*ports.AuthResponse, error) {
	email := entities.NormalizeEmail(req.Email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, entities.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		s.auditor.LogAuthAttempt(ctx, email, false, "User not found")
		return nil, entities.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.auditor.LogAuthAttempt(ctx, email, false, "Invalid password")
		return nil, entities.ErrInvalidCredentials
	}

	s.auditor.LogAuthAttempt(ctx, email, true, "")

	token, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &ports.AuthResponse{ID: user.ID, Name: user.Name, Email: user.Email, Token: token}, nil
}

// Authenticate validates a bearer token, rejects revoked tokens and loads
// the user it was issued to
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*entities.User, *ports.Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		reason := "Invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "Token expired"
		}
		s.auditor.LogSuspiciousActivity(ctx, security.ActivityTokenVerification, reason, "")
		return nil, nil, fmt.Errorf("%w: %v", entities.ErrUnauthenticated, err)
	}

	revoked, err := s.cache.Exists(ctx, blacklistKey(claims.TokenID))
	if err != nil {
		s.logger.Warnw("Token blacklist unavailable", "error", err)
	}
	if revoked {
		s.auditor.LogSuspiciousActivity(ctx, security.ActivityRevokedToken, "Token has been revoked", claims.UserID)
		return nil, nil, fmt.Errorf("%w: token revoked", entities.ErrUnauthenticated)
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, entities.ErrUserNotFound) {
			s.auditor.LogSuspiciousActivity(ctx, security.ActivityInvalidUser,
				fmt.Sprintf("Token decoded but user not found: %s", claims.UserID), "")
			return nil, nil, fmt.Errorf("%w: user not found", entities.ErrUnauthenticated)
		}
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}

	return user, claims, nil
}

// Logout blacklists the token until it would have expired anyway
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return fmt.Errorf("%w: %v", entities.ErrUnauthenticated, err)
	}

	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.cache.Set(ctx, blacklistKey(claims.TokenID), "1", ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.logger.LogUserAction(claims.UserID, "logout", nil)
	return nil
}

// GetProfile returns the user without its password hash
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*entities.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

// ValidateToken validates a JWT token and returns claims
func (s *AuthService) ValidateToken(tokenString string) (*ports.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtConfig.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.jwtConfig.Issuer),
		jwt.WithAudience(s.jwtConfig.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" || claims.ID == "" {
		return nil, fmt.Errorf("invalid token claims")
	}

	return &ports.Claims{
		UserID:    claims.UserID,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *AuthService) generateAccessToken(user *entities.User) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtConfig.ExpiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.jwtConfig.Issuer,
			Audience:  jwt.ClaimStrings{s.jwtConfig.Audience},
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

func blacklistKey(tokenID string) string {
	return "auth:blacklist:" + tokenID
}
