package service

import (
	"context"
	"strings"

	"kolabnaskah/internal/account/model"
	"kolabnaskah/internal/session"
	"kolabnaskah/pkg/apperror"
	"kolabnaskah/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength matches the hosted identity service's default policy.
const MinPasswordLength = 6

type Repository interface {
	Create(ctx context.Context, id, email, passwordHash string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, string, error)
	Get(ctx context.Context, userID string) (*model.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// Sessions issues and revokes session tokens.
type Sessions interface {
	Issue(userID, email string) (string, *session.Session, error)
	SignOut(ctx context.Context, s *session.Session) error
}

type AccountService struct {
	Repo     Repository
	Sessions Sessions
	Cost     int
}

func NewAccountService(repo Repository, sessions Sessions) *AccountService {
	return &AccountService{Repo: repo, Sessions: sessions, Cost: bcrypt.DefaultCost}
}

func (s *AccountService) SignUp(ctx context.Context, creds model.Credentials) (*model.AuthResponse, error) {
	email := strings.TrimSpace(creds.Email)
	if !strings.Contains(email, "@") {
		return nil, apperror.Validation("A valid email is required")
	}
	if err := checkPassword(creds.Password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.Cost)
	if err != nil {
		return nil, apperror.Store("hash password", err)
	}
	user, err := s.Repo.Create(ctx, uuid.NewString(), email, string(hash))
	if err != nil {
		return nil, err
	}
	logger.Sugar.Infof("User %s signed up", user.ID)
	return s.issue(user)
}

func (s *AccountService) SignIn(ctx context.Context, creds model.Credentials) (*model.AuthResponse, error) {
	user, hash, err := s.Repo.FindByEmail(ctx, strings.TrimSpace(creds.Email))
	if apperror.IsNotFound(err) {
		return nil, apperror.Unauthorized("Invalid email or password")
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)) != nil {
		return nil, apperror.Unauthorized("Invalid email or password")
	}
	return s.issue(user)
}

func (s *AccountService) SignOut(ctx context.Context, sess *session.Session) error {
	if err := s.Sessions.SignOut(ctx, sess); err != nil {
		return apperror.Store("sign out", err)
	}
	return nil
}

func (s *AccountService) Me(ctx context.Context, userID string) (*model.User, error) {
	return s.Repo.Get(ctx, userID)
}

// UpdatePassword rejects a mismatched confirmation before the store is touched.
func (s *AccountService) UpdatePassword(ctx context.Context, userID string, req model.PasswordUpdate) error {
	if req.Password != req.ConfirmPassword {
		return apperror.Validation("Passwords do not match")
	}
	if err := checkPassword(req.Password); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.Cost)
	if err != nil {
		return apperror.Store("hash password", err)
	}
	return s.Repo.UpdatePassword(ctx, userID, string(hash))
}

func (s *AccountService) issue(user *model.User) (*model.AuthResponse, error) {
	token, sess, err := s.Sessions.Issue(user.ID, user.Email)
	if err != nil {
		return nil, apperror.Store("issue session", err)
	}
	return &model.AuthResponse{Token: token, User: *user, ExpiresAt: sess.ExpiresAt}, nil
}

func checkPassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return apperror.Validation("Password must be at least 6 characters")
	}
	return nil
}
