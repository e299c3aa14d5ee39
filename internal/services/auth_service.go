package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/franciscosanchezn/gin-recipe-api/internal/auth"
	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/franciscosanchezn/gin-recipe-api/internal/repository"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultRoleCode is granted to every self-registered user.
const DefaultRoleCode = "user"

type RegisterInput struct {
	Username string  `json:"username" binding:"required,min=3,max=64"`
	Password string  `json:"password" binding:"required,min=8,max=128"`
	Email    *string `json:"email" binding:"omitempty,email"`
	FullName *string `json:"full_name" binding:"omitempty,max=128"`
}

type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshInput struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type LogoutInput struct {
	RefreshToken string `json:"refresh_token"`
}

// LoginResult is the token pair together with the signed-in user.
type LoginResult struct {
	*auth.TokenPair
	User *models.User `json:"user"`
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	// VerifyPassword checks credentials and updates login counters. It backs
	// the password grant of the token endpoint.
	VerifyPassword(ctx context.Context, username, password string) (string, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	// Authenticate validates a bearer token and loads its principal.
	Authenticate(ctx context.Context, accessToken string) (*models.UserContext, error)
}

type authService struct {
	db          *gorm.DB
	users       *repository.UserRepository
	roles       *repository.RoleRepository
	userService UserService
	oauth       *auth.OAuthService
	maxAttempts int
}

func NewAuthService(db *gorm.DB, users *repository.UserRepository, roles *repository.RoleRepository, userService UserService, oauth *auth.OAuthService, maxAttempts int) AuthService {
	s := &authService{
		db:          db,
		users:       users,
		roles:       roles,
		userService: userService,
		oauth:       oauth,
		maxAttempts: maxAttempts,
	}
	oauth.SetPasswordVerifier(s.VerifyPassword)
	return s
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	user, err := newUser(in.Username, in.Password)
	if err != nil {
		return nil, err
	}
	user.Email = in.Email
	user.FullName = in.FullName

	err = database.Transaction(ctx, s.db, func(ctx context.Context) error {
		existing, err := s.users.FindByUsername(ctx, user.Username)
		ok, err := found(existing, err)
		if err != nil {
			return err
		}
		if ok {
			return models.NewAppError(models.KindAlreadyExists, models.CodeRegisterFailed,
				"username "+user.Username+" is already taken")
		}
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		role, err := s.roles.FindByCode(ctx, DefaultRoleCode)
		ok, err = found(role, err)
		if err != nil {
			return err
		}
		if !ok {
			log.WithField("role", DefaultRoleCode).Warn("Default role missing, registered user has no roles")
			return nil
		}
		return s.users.AddRoles(ctx, user.ID, role.ID)
	})
	if err != nil {
		return nil, translate(err, "user", user.Username)
	}
	log.WithFields(log.Fields{"user_id": user.ID, "username": user.Username}).Info("User registered")
	return s.users.GetWithRoles(ctx, user.ID, models.ViewActive)
}

// checkCredentials verifies the password and records the attempt. A wrong
// password commits the increased counter before the error is returned.
func (s *authService) checkCredentials(ctx context.Context, username, password string) (*models.User, error) {
	var user *models.User
	var failure error
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		u, err := s.users.FindOneForUpdate(ctx, repository.Where("username", strings.TrimSpace(username)))
		if errors.Is(err, repository.ErrNotFound) {
			failure = models.ErrInvalidCredential
			return nil
		}
		if err != nil {
			return err
		}
		if !u.IsActive {
			failure = models.ErrInvalidCredential
			return nil
		}
		if u.IsLocked {
			failure = models.NewAppError(models.KindUnauthorized, models.CodeLoginFailed,
				"account is locked after too many failed attempts")
			return nil
		}
		if !u.CheckPassword(password) {
			attempts := u.LoginAttempts + 1
			fields := map[string]any{"login_attempts": attempts}
			if s.maxAttempts > 0 && attempts >= s.maxAttempts {
				fields["is_locked"] = true
				log.WithFields(log.Fields{"user_id": u.ID, "attempts": attempts}).Warn("Account locked")
			}
			failure = models.ErrInvalidCredential
			_, err := s.users.UpdateFields(ctx, u.ID, fields)
			return err
		}
		now := time.Now().UTC()
		if _, err := s.users.UpdateFields(ctx, u.ID, map[string]any{
			"login_attempts": 0,
			"login_count":    u.LoginCount + 1,
			"last_login_at":  now,
		}); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	return user, nil
}

func (s *authService) VerifyPassword(ctx context.Context, username, password string) (string, error) {
	user, err := s.checkCredentials(ctx, username, password)
	if err != nil {
		return "", err
	}
	return user.ID.String(), nil
}

func (s *authService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	user, err := s.checkCredentials(ctx, in.Username, in.Password)
	if err != nil {
		log.WithField("username", in.Username).WithError(err).Info("Login rejected")
		return nil, err
	}
	pair, err := s.oauth.IssueForUser(ctx, user.ID.String())
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	full, err := s.users.GetWithRoles(ctx, user.ID, models.ViewActive)
	if err != nil {
		return nil, translate(err, "user", user.ID)
	}
	log.WithField("user_id", user.ID).Info("User logged in")
	return &LoginResult{TokenPair: pair, User: full}, nil
}

// tokenError keeps token sentinels and hides everything else.
func tokenError(err error) error {
	if _, ok := models.AsAppError(err); ok {
		return err
	}
	return models.NewInternalError(err)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	pair, err := s.oauth.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, tokenError(err)
	}
	return pair, nil
}

func (s *authService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if err := s.oauth.Revoke(ctx, accessToken, refreshToken); err != nil {
		return tokenError(err)
	}
	return nil
}

func (s *authService) Authenticate(ctx context.Context, accessToken string) (*models.UserContext, error) {
	claims, err := s.oauth.ValidateAccessToken(ctx, accessToken)
	if err != nil {
		return nil, tokenError(err)
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, models.ErrTokenInvalid
	}
	return s.userService.LoadContext(ctx, id)
}
