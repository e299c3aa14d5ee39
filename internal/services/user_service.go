package services

import (
	"context"
	"io"
	"strings"

	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/franciscosanchezn/gin-recipe-api/internal/repository"
	"github.com/franciscosanchezn/gin-recipe-api/internal/storage"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AvatarProfile is the storage profile user avatars are uploaded to.
const AvatarProfile = "avatar"

type UserCreateInput struct {
	Username    string      `json:"username" binding:"required,min=3,max=64"`
	Password    string      `json:"password" binding:"required,min=8,max=128"`
	Email       *string     `json:"email" binding:"omitempty,email"`
	Phone       *string     `json:"phone" binding:"omitempty,max=32"`
	FullName    *string     `json:"full_name" binding:"omitempty,max=128"`
	IsActive    *bool       `json:"is_active"`
	IsSuperuser bool        `json:"is_superuser"`
	RoleIDs     []uuid.UUID `json:"role_ids"`
}

// UserUpdateInput changes profile fields. Account flags need user:update.
type UserUpdateInput struct {
	Email       *string `json:"email" binding:"omitempty,email"`
	Phone       *string `json:"phone" binding:"omitempty,max=32"`
	FullName    *string `json:"full_name" binding:"omitempty,max=128"`
	IsActive    *bool   `json:"is_active"`
	IsLocked    *bool   `json:"is_locked"`
	IsSuperuser *bool   `json:"is_superuser"`
}

type ChangePasswordInput struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=128"`
}

type AvatarInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

type UserService interface {
	CreateUser(ctx context.Context, uc *models.UserContext, in UserCreateInput) (*models.User, error)
	GetUser(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode) (*models.User, error)
	ListUsers(ctx context.Context, uc *models.UserContext, q repository.PageQuery) (*repository.Page[models.User], error)
	UpdateUser(ctx context.Context, uc *models.UserContext, id uuid.UUID, in UserUpdateInput) (*models.User, error)
	DeleteUser(ctx context.Context, uc *models.UserContext, id uuid.UUID) error
	AssignRoles(ctx context.Context, uc *models.UserContext, id uuid.UUID, roleIDs []uuid.UUID) (*models.User, error)
	ChangePassword(ctx context.Context, uc *models.UserContext, in ChangePasswordInput) error
	// UpdateAvatar uploads a new avatar for the current user. The previous
	// object is removed after the database commit.
	UpdateAvatar(ctx context.Context, uc *models.UserContext, in AvatarInput) (*models.User, error)
	Me(ctx context.Context, uc *models.UserContext) (*models.User, error)
	// LoadContext resolves the principal of a request from a user id.
	LoadContext(ctx context.Context, userID uuid.UUID) (*models.UserContext, error)
}

type userService struct {
	db      *gorm.DB
	users   *repository.UserRepository
	roles   *repository.RoleRepository
	records *repository.FileRecordRepository
	files   *storage.Factory
	policy  Policy
}

func NewUserService(db *gorm.DB, users *repository.UserRepository, roles *repository.RoleRepository, records *repository.FileRecordRepository, files *storage.Factory) UserService {
	return &userService{
		db:      db,
		users:   users,
		roles:   roles,
		records: records,
		files:   files,
		policy:  PolicyFor(ResourceUser),
	}
}

func (s *userService) ensureUsernameFree(ctx context.Context, username string) error {
	existing, err := s.users.FindByUsername(ctx, username)
	ok, err := found(existing, err)
	if err != nil {
		return err
	}
	if ok {
		return models.NewAlreadyExistsError("username %q is already taken", username)
	}
	return nil
}

func (s *userService) validateRoles(ctx context.Context, ids []uuid.UUID) error {
	ok, err := s.roles.AreIDsValid(ctx, ids)
	if err != nil {
		return err
	}
	if !ok {
		return missingError("role", models.ViewActive)
	}
	return nil
}

// newUser builds an unsaved user with a hashed password.
func newUser(username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, models.NewValidationError("username is required")
	}
	u := &models.User{Username: username, IsActive: true}
	if err := u.SetPassword(password); err != nil {
		return nil, models.NewInternalError(err)
	}
	return u, nil
}

func (s *userService) CreateUser(ctx context.Context, uc *models.UserContext, in UserCreateInput) (*models.User, error) {
	if err := authorize(s.policy.CanCreate(uc), "create", "user"); err != nil {
		return nil, err
	}
	if in.IsSuperuser && !uc.IsSuperuser() {
		return nil, models.NewPermissionDeniedError("only a superuser can create superusers")
	}
	user, err := newUser(in.Username, in.Password)
	if err != nil {
		return nil, err
	}
	user.Email = in.Email
	user.Phone = in.Phone
	user.FullName = in.FullName
	user.IsSuperuser = in.IsSuperuser
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	user.StampCreate(uc.ActorID())
	roleIDs := repository.UniqueIDs(in.RoleIDs)

	err = database.Transaction(ctx, s.db, func(ctx context.Context) error {
		if err := s.ensureUsernameFree(ctx, user.Username); err != nil {
			return err
		}
		if err := s.validateRoles(ctx, roleIDs); err != nil {
			return err
		}
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		return s.users.AddRoles(ctx, user.ID, roleIDs...)
	})
	if err != nil {
		return nil, translate(err, "user", user.Username)
	}
	log.WithFields(log.Fields{"user_id": user.ID, "username": user.Username}).Info("User created")
	return s.users.GetWithRoles(ctx, user.ID, models.ViewActive)
}

func (s *userService) GetUser(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode) (*models.User, error) {
	if id != uc.UserID() {
		if err := authorize(s.policy.CanRead(uc), "read", "user"); err != nil {
			return nil, err
		}
	}
	user, err := s.users.GetWithRoles(ctx, id, mode)
	if err != nil {
		return nil, translate(err, "user", id)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, uc *models.UserContext, q repository.PageQuery) (*repository.Page[models.User], error) {
	if err := authorize(s.policy.CanRead(uc), "list", "user"); err != nil {
		return nil, err
	}
	q.Preload = s.users.WithRoles
	return s.users.FindPaged(ctx, q)
}

func (s *userService) UpdateUser(ctx context.Context, uc *models.UserContext, id uuid.UUID, in UserUpdateInput) (*models.User, error) {
	admin := s.policy.CanUpdate(uc, nil)
	if id != uc.UserID() && !admin {
		return nil, models.NewPermissionDeniedError("you are not allowed to update this user")
	}
	flags := in.IsActive != nil || in.IsLocked != nil || in.IsSuperuser != nil
	if flags && !admin {
		return nil, models.NewPermissionDeniedError("you are not allowed to change account flags")
	}
	if in.IsSuperuser != nil && !uc.IsSuperuser() {
		return nil, models.NewPermissionDeniedError("only a superuser can grant or revoke superuser")
	}

	fields := map[string]any{"updated_by": uc.ActorID()}
	if in.Email != nil {
		fields["email"] = in.Email
	}
	if in.Phone != nil {
		fields["phone"] = in.Phone
	}
	if in.FullName != nil {
		fields["full_name"] = in.FullName
	}
	if in.IsActive != nil {
		fields["is_active"] = *in.IsActive
	}
	if in.IsLocked != nil {
		fields["is_locked"] = *in.IsLocked
		if !*in.IsLocked {
			fields["login_attempts"] = 0
		}
	}
	if in.IsSuperuser != nil {
		fields["is_superuser"] = *in.IsSuperuser
	}

	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		n, err := s.users.UpdateFields(ctx, id, fields)
		if err != nil {
			return err
		}
		if n == 0 {
			return models.NewNotFoundError("user", id)
		}
		return nil
	})
	if err != nil {
		return nil, translate(err, "user", id)
	}
	return s.users.GetWithRoles(ctx, id, models.ViewActive)
}

func (s *userService) DeleteUser(ctx context.Context, uc *models.UserContext, id uuid.UUID) error {
	if err := authorize(s.policy.CanDelete(uc, nil), "delete", "user"); err != nil {
		return err
	}
	if id == uc.UserID() {
		return models.NewBusinessRuleError("you cannot delete your own account")
	}
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		n, err := s.users.SoftDelete(ctx, id, uc.ActorID())
		if err != nil {
			return err
		}
		if n == 0 {
			return models.NewNotFoundError("user", id)
		}
		return nil
	})
	return translate(err, "user", id)
}

func (s *userService) AssignRoles(ctx context.Context, uc *models.UserContext, id uuid.UUID, roleIDs []uuid.UUID) (*models.User, error) {
	if err := authorize(s.policy.CanUpdate(uc, nil), "assign roles to", "user"); err != nil {
		return nil, err
	}
	roleIDs = repository.UniqueIDs(roleIDs)
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		if _, err := s.users.GetByID(ctx, id, models.ViewActive); err != nil {
			return err
		}
		if err := s.validateRoles(ctx, roleIDs); err != nil {
			return err
		}
		return s.users.ReplaceRoles(ctx, id, roleIDs)
	})
	if err != nil {
		return nil, translate(err, "user", id)
	}
	return s.users.GetWithRoles(ctx, id, models.ViewActive)
}

func (s *userService) ChangePassword(ctx context.Context, uc *models.UserContext, in ChangePasswordInput) error {
	if uc == nil || uc.User == nil || uc.UserID() == uuid.Nil {
		return models.ErrNotAuthenticated
	}
	if in.OldPassword == in.NewPassword {
		return models.NewValidationError("the new password must differ from the old one")
	}
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		user, err := s.users.LockByID(ctx, uc.UserID())
		if err != nil {
			return err
		}
		if !user.CheckPassword(in.OldPassword) {
			return models.NewValidationError("the old password is incorrect")
		}
		if err := user.SetPassword(in.NewPassword); err != nil {
			return models.NewInternalError(err)
		}
		_, err = s.users.UpdateFields(ctx, user.ID, map[string]any{
			"hashed_password": user.HashedPassword,
			"updated_by":      uc.ActorID(),
		})
		return err
	})
	if err != nil {
		return translate(err, "user", uc.UserID())
	}
	log.WithField("user_id", uc.UserID()).Info("Password changed")
	return nil
}

func (s *userService) UpdateAvatar(ctx context.Context, uc *models.UserContext, in AvatarInput) (*models.User, error) {
	if uc == nil || uc.User == nil || uc.UserID() == uuid.Nil {
		return nil, models.ErrNotAuthenticated
	}
	rec, err := uploadFile(ctx, s.files, uc, UploadInput{
		Profile:     AvatarProfile,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Size:        in.Size,
		Body:        in.Body,
	})
	if err != nil {
		return nil, err
	}
	rec.IsAssociated = true

	var previous *models.FileRecord
	err = database.Transaction(ctx, s.db, func(ctx context.Context) error {
		user, err := s.users.LockByID(ctx, uc.UserID())
		if err != nil {
			return err
		}
		if err := s.records.Create(ctx, rec); err != nil {
			return err
		}
		if user.AvatarFileID != nil {
			old, err := s.records.GetByID(ctx, *user.AvatarFileID, models.ViewAll)
			ok, err := found(old, err)
			if err != nil {
				return err
			}
			if ok {
				if _, err := s.records.MarkAssociated(ctx, []uuid.UUID{old.ID}, false); err != nil {
					return err
				}
				previous = old
			}
		}
		var avatarURL *string
		if u := s.files.URL(AvatarProfile, rec.ObjectName); u != "" {
			avatarURL = &u
		}
		_, err = s.users.UpdateFields(ctx, user.ID, map[string]any{
			"avatar_file_id": rec.ID,
			"avatar_url":     avatarURL,
			"updated_by":     uc.ActorID(),
		})
		return err
	})
	if err != nil {
		discardObject(ctx, s.files, AvatarProfile, rec.ObjectName)
		return nil, translate(err, "user", uc.UserID())
	}
	if previous != nil {
		removeObjects(ctx, s.files, s.records, []models.FileRecord{*previous})
	}
	log.WithFields(log.Fields{"user_id": uc.UserID(), "file_id": rec.ID}).Info("Avatar updated")
	return s.users.GetWithRoles(ctx, uc.UserID(), models.ViewActive)
}

func (s *userService) Me(ctx context.Context, uc *models.UserContext) (*models.User, error) {
	if uc == nil || uc.User == nil || uc.UserID() == uuid.Nil {
		return nil, models.ErrNotAuthenticated
	}
	user, err := s.users.GetWithRoles(ctx, uc.UserID(), models.ViewActive)
	if err != nil {
		return nil, translate(err, "user", uc.UserID())
	}
	return user, nil
}

func (s *userService) LoadContext(ctx context.Context, userID uuid.UUID) (*models.UserContext, error) {
	user, err := s.users.GetWithRoles(ctx, userID, models.ViewActive)
	ok, err := found(user, err)
	if err != nil {
		return nil, err
	}
	if !ok || !user.IsActive {
		return nil, models.ErrTokenInvalid
	}
	if user.IsLocked {
		return nil, models.NewUnauthorizedError(models.CodeAuth, "account is locked")
	}
	return models.NewUserContext(user), nil
}
