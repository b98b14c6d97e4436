package otp

import (
	"crypto/subtle"
	"sync"
	"time"
)

type memoryEntry struct {
	code      string
	expiresAt time.Time
}

// MemoryLedger keeps codes in process memory. Expired entries are dropped lazily.
type MemoryLedger struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryLedger builds a ledger; ttl <= 0 uses DefaultTTL.
func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryLedger{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (l *MemoryLedger) Put(email, code string) error {
	key, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for k, e := range l.entries {
		if !now.Before(e.expiresAt) {
			delete(l.entries, k)
		}
	}
	l.entries[key] = memoryEntry{code: code, expiresAt: now.Add(l.ttl)}
	return nil
}

func (l *MemoryLedger) Consume(email, code string) (bool, error) {
	key, err := normalizeEmail(email)
	if err != nil {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return false, nil
	}
	if !l.now().Before(e.expiresAt) {
		delete(l.entries, key)
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(e.code), []byte(code)) != 1 {
		return false, nil
	}
	delete(l.entries, key)
	return true, nil
}
