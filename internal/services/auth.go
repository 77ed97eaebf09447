package services

import (
	"context"
	"errors"
	"strings"

	"github.com/ryshoes/storefront/internal/logging"
	"github.com/ryshoes/storefront/internal/session"
	"github.com/ryshoes/storefront/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Upsert(ctx context.Context, user types.User) (types.User, error)
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
	Address  string `json:"address" validate:"required"`
	Name     string `json:"name" validate:"max=128"`
	Phone    string `json:"phone" validate:"max=32"`
}

// LoginInput is the login payload.
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordInput is the password change payload.
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

// Profile is the public view of the logged-in user.
type Profile struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// AuthService encapsulates account use-cases.
type AuthService struct {
	repo      UserRepository
	hashCost  int
	dummyHash []byte
}

func NewAuthService(repo UserRepository) *AuthService {
	s := &AuthService{repo: repo, hashCost: bcrypt.DefaultCost}
	// Compared against on unknown usernames so both login failures cost
	// one bcrypt comparison.
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("storefront-dummy-password"), s.hashCost)
	return s
}

// Register creates a USER account. It does not log the user in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (types.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Address = strings.TrimSpace(input.Address)
	input.Name = strings.TrimSpace(input.Name)
	input.Phone = strings.TrimSpace(input.Phone)

	if verr := validateStruct(input, nil); verr.OrNil() != nil {
		verr.Message = "missing required fields"
		return types.User{}, verr
	}

	hashed, err := s.hashPassword("password", input.Password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     input.Username,
		Name:         input.Name,
		Address:      input.Address,
		Phone:        input.Phone,
		Role:         types.RoleUser,
		PasswordHash: string(hashed),
	})
	if err != nil {
		return types.User{}, mapStoreError(err)
	}

	logging.FromContext(ctx).WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("user registered")
	return user, nil
}

// Login verifies credentials. Unknown usernames and wrong passwords both
// return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (types.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	if verr := validateStruct(input, nil); verr.OrNil() != nil {
		verr.Message = "missing credentials"
		return types.User{}, verr
	}

	user, err := s.repo.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(mapStoreError(err), ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(input.Password))
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		logging.FromContext(ctx).WithField("username", input.Username).Warn("login rejected")
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ChangePassword replaces the password of the logged-in user after
// verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, actor session.Data, input ChangePasswordInput) error {
	if !actor.IsLoggedIn {
		return ErrUnauthorized
	}
	if verr := validateStruct(input, nil); verr.OrNil() != nil {
		return verr
	}
	if err := checkPasswordLength("newPassword", input.NewPassword); err != nil {
		return err
	}

	user, err := s.repo.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(mapStoreError(err), ErrNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.CurrentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hashed, err := s.hashPassword("newPassword", input.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hashed)
	if _, err := s.repo.Update(ctx, user); err != nil {
		return mapStoreError(err)
	}
	return nil
}

// Profile returns the display profile of the logged-in user.
func (s *AuthService) Profile(ctx context.Context, actor session.Data) (Profile, error) {
	if !actor.IsLoggedIn {
		return Profile{}, ErrUnauthorized
	}
	user, err := s.repo.GetByID(ctx, actor.ID)
	if err != nil {
		return Profile{}, mapStoreError(err)
	}
	return Profile{
		Name:    user.DisplayName(),
		Address: user.Address,
		Phone:   user.Phone,
	}, nil
}

// GetUser loads a user by id.
func (s *AuthService) GetUser(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, mapStoreError(err)
	}
	return user, nil
}

// SeedAdmin creates the admin account or resets its password and role.
func (s *AuthService) SeedAdmin(ctx context.Context, username, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return types.User{}, &ValidationError{Message: "admin username and password are required"}
	}
	hashed, err := s.hashPassword("password", password)
	if err != nil {
		return types.User{}, err
	}
	return s.repo.Upsert(ctx, types.User{
		Username:     username,
		Name:         "Administrator",
		Role:         types.RoleAdmin,
		PasswordHash: string(hashed),
	})
}

// hashPassword bcrypts password, reporting an over-long password as a
// validation failure on field.
func (s *AuthService) hashPassword(field, password string) ([]byte, error) {
	if err := checkPasswordLength(field, password); err != nil {
		return nil, err
	}
	return bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
}

// checkPasswordLength counts bytes, not runes.
func checkPasswordLength(field, password string) error {
	if len(password) <= maxPasswordBytes {
		return nil
	}
	verr := &ValidationError{}
	verr.Add(field, "Password must be at most 72 bytes")
	return verr
}
