package stepauth

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// captureSink records every event it receives.
type captureSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *captureSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *captureSink) byType(eventType string) []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AuditEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// gateSink blocks inside Emit until released, to fill the dispatch
// buffer deterministically.
type gateSink struct {
	release chan struct{}
	entered chan struct{}
	once    sync.Once
}

func newGateSink() *gateSink {
	return &gateSink{
		release: make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	s.once.Do(func() { s.entered <- struct{}{} })
	<-s.release
}

func auditTestConfig() *Config {
	cfg := engineTestConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = true
	return cfg
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	sink := &captureSink{}
	engine, _ := newTestEngine(t, func(b *Builder) {
		b.WithAuditSink(sink)
	})

	registerTestUser(t, engine, "alice-01", "alice@example.com", "longenough1")
	engine.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 0 {
		t.Fatalf("audit disabled but %d events reached the sink", len(sink.events))
	}
}

func TestAuditEventsForLoginLifecycle(t *testing.T) {
	sink := &captureSink{}
	engine, _ := newTestEngine(t, func(b *Builder) {
		b.WithConfig(auditTestConfig())
		b.WithAuditSink(sink)
	})
	ctx := WithClientIP(context.Background(), "192.0.2.7")
	ctx = WithUserAgent(ctx, "audit-test/1.0")

	reg := registerTestUser(t, engine, "alice-01", "alice@example.com", "longenough1")

	if _, err := engine.Login(ctx, &LoginRequest{
		Username: "alice-01",
		Type:     VerificationPassword,
		Password: "longenough1",
	}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	_, err := engine.Login(ctx, &LoginRequest{
		Username: "alice-01",
		Type:     VerificationPassword,
		Password: "wrong-password",
	})
	if !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}

	// Close drains queued events before the assertions.
	engine.Close()

	successes := sink.byType(auditEventLoginSuccess)
	if len(successes) != 1 {
		t.Fatalf("login_success events %d, want 1", len(successes))
	}
	success := successes[0]
	if success.UserID != reg.User.ID || !success.Success {
		t.Fatalf("unexpected success event %+v", success)
	}
	if success.IP != "192.0.2.7" || success.UserAgent != "audit-test/1.0" {
		t.Fatalf("context attribution missing: %+v", success)
	}
	if success.SessionID == "" {
		t.Fatal("login_success must carry the session id")
	}
	if success.Metadata["verification_types"] != "password" {
		t.Fatalf("metadata %v, want verification_types=password", success.Metadata)
	}

	failures := sink.byType(auditEventLoginFailure)
	if len(failures) != 1 {
		t.Fatalf("login_failure events %d, want 1", len(failures))
	}
	failure := failures[0]
	if failure.Success {
		t.Fatal("failure event marked successful")
	}
	if failure.Error != string(auditErrInvalidCredentials) {
		t.Fatalf("error code %q, want %q", failure.Error, auditErrInvalidCredentials)
	}
	if failure.Metadata["reason"] != "password" {
		t.Fatalf("metadata %v, want reason=password", failure.Metadata)
	}
}

func TestAuditDropIfFullCountsDrops(t *testing.T) {
	sink := newGateSink()
	cfg := auditTestConfig()
	cfg.Audit.BufferSize = 1
	engine, _ := newTestEngine(t, func(b *Builder) {
		b.WithConfig(cfg)
		b.WithAuditSink(sink)
	})
	ctx := context.Background()

	// First event occupies the sink, second fills the buffer.
	registerTestUser(t, engine, "alice-01", "alice@example.com", "longenough1")
	<-sink.entered

	for i := 0; i < 8; i++ {
		_, _ = engine.Login(ctx, &LoginRequest{
			Username: "alice-01",
			Type:     VerificationPassword,
			Password: "wrong-password",
		})
	}

	if engine.AuditDropped() == 0 {
		t.Fatal("expected dropped events with a full buffer")
	}

	close(sink.release)
}

func TestChannelSinkDelivers(t *testing.T) {
	sink := NewChannelSink(4)
	engine, _ := newTestEngine(t, func(b *Builder) {
		b.WithConfig(auditTestConfig())
		b.WithAuditSink(sink)
	})

	registerTestUser(t, engine, "alice-01", "alice@example.com", "longenough1")

	select {
	case event := <-sink.Events():
		if event.EventType != auditEventRegisterSuccess {
			t.Fatalf("event type %q, want register_success", event.EventType)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event arrived on the channel")
	}
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	engine, _ := newTestEngine(t, func(b *Builder) {
		b.WithConfig(auditTestConfig())
		b.WithAuditSink(sink)
	})

	registerTestUser(t, engine, "alice-01", "alice@example.com", "longenough1")
	registerTestUser(t, engine, "bobby-01", "bob@example.com", "longenough1")
	engine.Close()

	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		var event AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines+1, err)
		}
		if event.EventType == "" {
			t.Fatalf("line %d missing event_type", lines+1)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("wrote %d lines, want 2", lines)
	}
}

func TestAuditErrorCodeTaxonomy(t *testing.T) {
	cases := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrInvalidRequest, auditErrInvalidRequest},
		{ErrInvalidToken, auditErrInvalidToken},
		{ErrInvalidPassword, auditErrInvalidCredentials},
		{ErrInvalidTOTP, auditErrInvalidCredentials},
		{ErrInvalidBackupCode, auditErrInvalidCredentials},
		{ErrUserNotFound, auditErrUserNotFound},
		{ErrAccountNotFound, auditErrUserNotFound},
		{ErrSessionNotFound, auditErrSessionNotFound},
		{ErrForbidden, auditErrForbidden},
		{ErrUserDeleted, auditErrUserDeleted},
		{ErrUserBanned, auditErrUserBanned},
		{ErrVerificationTypeBlocked, auditErrVerificationBlock},
		{ErrVerificationNotSupported, auditErrVerificationBlock},
		{ErrUsernameTaken, auditErrDuplicate},
		{ErrEmailTaken, auditErrDuplicate},
		{ErrPasswordTooShort, auditErrPolicy},
		{ErrUsernameLength, auditErrPolicy},
		{ErrInvalidEmail, auditErrPolicy},
		{ErrTOTPNotEnabled, auditErrTOTPState},
		{ErrTOTPAlreadyEnabled, auditErrTOTPState},
		{ErrEnrollmentNotFound, auditErrEnrollmentExpired},
		{ErrProofOfWorkTooWeak, auditErrProofOfWorkWeak},
		{internalErr(errors.New("boom")), auditErrInternal},
		{errors.New("unmapped"), auditErrInternal},
	}

	for _, tc := range cases {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
