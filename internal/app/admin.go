package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"blogsvc/internal/util"
	"blogsvc/pkg/domain"
	"blogsvc/pkg/notify"
	"blogsvc/pkg/otp"
)

const notifyTimeout = 15 * time.Second

// SendAdminCode stores a fresh code for email and asks the approver to pass it
// on. The code is stored before delivery, so a failed notification still
// leaves a verifiable code behind.
func (a *App) SendAdminCode(ctx context.Context, email, requesterName string) error {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if exists {
		return ErrEmailAlreadyExists
	}
	code, err := otp.GenerateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	if err := a.codes.Put(email, code); err != nil {
		return fmt.Errorf("store code: %w", err)
	}

	name := strings.TrimSpace(requesterName)
	if name == "" {
		name = "(no name given)"
	}
	msg := notify.Message{
		From:    a.mailFrom,
		To:      a.approverEmail,
		Subject: "Admin signup request",
		Body: fmt.Sprintf(
			"%s <%s> asked to become an administrator.\n\nVerification code: %s\n",
			name, email, code,
		),
	}
	sendCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := a.notifier.Send(sendCtx, msg); err != nil {
		util.LoggerFromContext(ctx).Warn("admin code notification failed", "err", err)
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	util.LoggerFromContext(ctx).Info("admin code sent", slog.String("approver", a.approverEmail))
	return nil
}

// VerifyAdminCode consumes the pending code for email and creates an admin.
func (a *App) VerifyAdminCode(name, email, password, code string) (AuthResult, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if code == "" {
		return AuthResult{}, ErrInvalidCode
	}
	if name == "" {
		return AuthResult{}, invalidInput("name required")
	}
	if err := validateEmail(email); err != nil {
		return AuthResult{}, err
	}
	if err := validatePassword(password); err != nil {
		return AuthResult{}, err
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return AuthResult{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return AuthResult{}, ErrEmailAlreadyExists
	}
	ok, err := a.codes.Consume(email, code)
	if err != nil {
		return AuthResult{}, fmt.Errorf("consume code: %w", err)
	}
	if !ok {
		return AuthResult{}, ErrInvalidCode
	}
	user, err := a.createUser(name, email, password, domain.RoleAdmin)
	if err != nil {
		return AuthResult{}, err
	}
	return a.issueToken(user)
}
