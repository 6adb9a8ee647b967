// Package auth validates client tokens and throttles brute-force attempts.
package auth

import (
	"context"
	"encoding/base64"
	"log"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	MaxTokenAttempts = 5
	LockoutDuration  = 5 * time.Minute
	CleanupInterval  = 5 * time.Minute
)

type failInfo struct {
	count       int
	lockedUntil time.Time
}

// Manager checks client tokens against a bcrypt hash and locks out
// addresses after repeated failures.
type Manager struct {
	hash     []byte
	failures map[string]failInfo
	mu       sync.RWMutex
}

// NewManager creates an auth manager from a base64-encoded bcrypt hash.
// An empty hash disables authentication. The cleanup goroutine is bound to ctx.
func NewManager(ctx context.Context, hashB64 string) *Manager {
	m := &Manager{
		failures: make(map[string]failInfo),
	}
	if hashB64 != "" {
		hash, err := base64.StdEncoding.DecodeString(hashB64)
		if err != nil {
			// Keep auth enabled with an unusable hash rather than silently opening up.
			log.Printf("[AUTH] ❌ Failed to decode token hash from base64: %v", err)
			hash = []byte("invalid")
		}
		m.hash = hash
	}
	go m.cleanupLoop(ctx)
	log.Printf("[AUTH] Token auth initialized (enabled=%v)", m.Enabled())
	return m
}

// Enabled returns true if a token hash was configured.
func (m *Manager) Enabled() bool {
	return m.hash != nil
}

// ValidateToken compares token with the configured bcrypt hash.
func (m *Manager) ValidateToken(token string) bool {
	if !m.Enabled() {
		return true
	}
	if token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(m.hash, []byte(token)) == nil
}

// IsLockedOut returns true if the address has exceeded MaxTokenAttempts.
func (m *Manager) IsLockedOut(addr string) bool {
	m.mu.RLock()
	info, exists := m.failures[addr]
	m.mu.RUnlock()
	if !exists {
		return false
	}
	return info.count >= MaxTokenAttempts && time.Now().Before(info.lockedUntil)
}

// RecordFailure increments the failure counter for an address.
func (m *Manager) RecordFailure(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := m.failures[addr]
	info.count++
	if info.count >= MaxTokenAttempts {
		info.lockedUntil = time.Now().Add(LockoutDuration)
		log.Printf("[AUDIT] %s locked out for %v after %d failed token attempts",
			addr, LockoutDuration, info.count)
	}
	m.failures[addr] = info
}

// ClearFailures resets the counter after a successful authentication.
func (m *Manager) ClearFailures(addr string) {
	m.mu.Lock()
	delete(m.failures, addr)
	m.mu.Unlock()
}

func (m *Manager) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("[AUTH] Cleanup goroutine stopped")
			return
		case <-ticker.C:
			m.mu.Lock()
			now := time.Now()
			for k, v := range m.failures {
				if v.count >= MaxTokenAttempts && now.After(v.lockedUntil) {
					delete(m.failures, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
