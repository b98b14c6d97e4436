package app

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"blogsvc/internal/util"
	"blogsvc/pkg/auth"
	"blogsvc/pkg/domain"
	"blogsvc/pkg/store"
)

// AuthResult is returned by every successful sign-in path.
type AuthResult struct {
	Token string          `json:"token"`
	Role  domain.UserRole `json:"role"`
	Name  string          `json:"name"`
	ID    string          `json:"id"`
}

// Register creates a user. Email uniqueness is exact and case-sensitive.
func (a *App) Register(name, email, password, role string) (AuthResult, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return AuthResult{}, invalidInput("name required")
	}
	if err := validateEmail(email); err != nil {
		return AuthResult{}, err
	}
	if err := validatePassword(password); err != nil {
		return AuthResult{}, err
	}
	userRole, err := parseRole(role)
	if err != nil {
		return AuthResult{}, err
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return AuthResult{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return AuthResult{}, ErrEmailAlreadyExists
	}
	user, err := a.createUser(name, email, password, userRole)
	if err != nil {
		return AuthResult{}, err
	}
	return a.issueToken(user)
}

// Login matches email ignoring case and checks the password hash.
func (a *App) Login(email, password string) (AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return AuthResult{}, ErrInvalidCredentials
	}
	user, ok, err := a.store.GetUserByEmailFold(email)
	if err != nil {
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return AuthResult{}, ErrInvalidCredentials
	}
	return a.issueToken(user)
}

// VerifyToken decodes a bearer token. An empty token is ErrUnauthenticated;
// a token failing verification is ErrInvalidToken, which is an ErrForbidden.
func (a *App) VerifyToken(token string) (domain.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Claims{}, ErrUnauthenticated
	}
	claims, err := a.sessions.ParseSession(token)
	if err != nil {
		if errors.Is(err, store.ErrInvalidToken) {
			return domain.Claims{}, ErrInvalidToken
		}
		return domain.Claims{}, fmt.Errorf("verify token: %w", err)
	}
	return claims, nil
}

func (a *App) createUser(name, email, password string, role domain.UserRole) (domain.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           util.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    a.timestamp(),
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

func (a *App) issueToken(user domain.User) (AuthResult, error) {
	token, err := a.sessions.NewSession(domain.Claims{ID: user.ID, Role: user.Role, Name: user.Name})
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return AuthResult{Token: token, Role: user.Role, Name: user.Name, ID: user.ID}, nil
}

func parseRole(role string) (domain.UserRole, error) {
	switch domain.UserRole(strings.ToLower(strings.TrimSpace(role))) {
	case "", domain.RoleUser:
		return domain.RoleUser, nil
	case domain.RoleAdmin:
		return domain.RoleAdmin, nil
	default:
		return "", invalidInput("role must be user or admin")
	}
}

func validatePassword(password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		return invalidInput(err.Error())
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return invalidInput("email required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalidInput("email format is invalid")
	}
	return nil
}
