package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"blogsvc/pkg/notify"
	"blogsvc/pkg/otp"
	"blogsvc/pkg/store"
)

// ImageHost stores uploaded images and hands back their public URLs.
type ImageHost interface {
	Upload(ctx context.Context, filename string, body io.Reader, size int64) (string, error)
	Remove(ctx context.Context, url string) error
}

// Config holds the collaborators the application is built from.
type Config struct {
	Store    store.Store
	Sessions store.SessionStore
	Codes    otp.Ledger
	Notifier notify.Notifier
	Images   ImageHost

	// MailFrom is the sender of approver notifications; ApproverEmail receives them.
	MailFrom      string
	ApproverEmail string

	Now func() time.Time
}

// App is the core application service wiring together storage and auth logic.
type App struct {
	store    store.Store
	sessions store.SessionStore
	codes    otp.Ledger
	notifier notify.Notifier
	images   ImageHost

	mailFrom      string
	approverEmail string
	now           func() time.Time
}

// New validates the collaborators and constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store required")
	}
	if cfg.Codes == nil {
		cfg.Codes = otp.NewMemoryLedger(otp.DefaultTTL)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NewLogNotifier(nil)
	}
	if cfg.Images == nil {
		return nil, errors.New("image host required")
	}
	if strings.TrimSpace(cfg.ApproverEmail) == "" {
		return nil, errors.New("approver email required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &App{
		store:         cfg.Store,
		sessions:      cfg.Sessions,
		codes:         cfg.Codes,
		notifier:      cfg.Notifier,
		images:        cfg.Images,
		mailFrom:      strings.TrimSpace(cfg.MailFrom),
		approverEmail: strings.TrimSpace(cfg.ApproverEmail),
		now:           cfg.Now,
	}, nil
}

// Ready reports whether the app was fully constructed.
func (a *App) Ready() bool {
	return a != nil && a.store != nil && a.sessions != nil
}

func (a *App) timestamp() time.Time {
	return a.now().UTC()
}
