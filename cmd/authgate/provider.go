package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/coachbase/authgate"
)

// memoryProvider is an in-process UserProvider for the standalone binary.
// Production deployments implement authgate.UserProvider against their own
// user database instead.
type memoryProvider struct {
	mu           sync.RWMutex
	byIdentifier map[string]authgate.UserRecord
	byID         map[string]authgate.UserRecord
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{
		byIdentifier: make(map[string]authgate.UserRecord),
		byID:         make(map[string]authgate.UserRecord),
	}
}

func (p *memoryProvider) add(user authgate.UserRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byIdentifier[user.Identifier] = user
	p.byID[user.SubjectID] = user
}

func (p *memoryProvider) GetUserByIdentifier(_ context.Context, identifier string) (authgate.UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	user, ok := p.byIdentifier[identifier]
	if !ok {
		return authgate.UserRecord{}, authgate.ErrUserNotFound
	}
	return user, nil
}

func (p *memoryProvider) GetUserByID(_ context.Context, subjectID string) (authgate.UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	user, ok := p.byID[subjectID]
	if !ok {
		return authgate.UserRecord{}, authgate.ErrUserNotFound
	}
	return user, nil
}

// logSender is a CodeSender that logs instead of delivering. In dev mode the
// plaintext code is included so the flow can be exercised end to end; outside
// dev mode only the fact of delivery is logged.
type logSender struct {
	logger *slog.Logger
	dev    bool
}

func (s *logSender) Send(_ context.Context, identifier, code string) error {
	if s.dev {
		s.logger.Info("otp code issued", "identifier", identifier, "code", code)
		return nil
	}
	s.logger.Info("otp code issued", "identifier", identifier)
	return nil
}
