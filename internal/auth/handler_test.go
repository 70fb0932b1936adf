package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/draftgate/draftgate/internal/auth"
	"github.com/draftgate/draftgate/internal/authz"
	"github.com/draftgate/draftgate/internal/shared"
	_ "github.com/draftgate/draftgate/testing"
)

type stubRepo struct {
	account *auth.Account
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	if s.account == nil || s.account.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.account, nil
}

func (s *stubRepo) Provision(ctx context.Context, email, passwordHash, displayName string, role authz.Role) (*auth.Account, error) {
	s.account = &auth.Account{ID: 7, Email: email, PasswordHash: passwordHash, IsActive: true}
	return s.account, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(repo), sessionManager, csrfManager)
	return handler, sessionManager
}

func doSessionRequest(t *testing.T, handler http.HandlerFunc, sessionManager *shared.SessionManager, req *http.Request) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)
	res := httptest.NewRecorder()
	handler(res, req)
	if err := sessionManager.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}
	return res, sess
}

func TestLoginSuccess(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass8"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	repo := &stubRepo{account: &auth.Account{ID: 1, Email: "user@test.local", PasswordHash: string(hashed), IsActive: true}}
	handler, sessionManager := newAuthHandler(t, repo)

	body := strings.NewReader(`{"email":"user@test.local","password":"correctpass8"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	res, sess := doSessionRequest(t, handler.HandleLoginForTest, sessionManager, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if sess.User() != "1" {
		t.Fatalf("expected session bound to user 1, got %q", sess.User())
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass8"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	repo := &stubRepo{account: &auth.Account{ID: 1, Email: "user@test.local", PasswordHash: string(hashed), IsActive: true}}
	handler, sessionManager := newAuthHandler(t, repo)

	body := strings.NewReader(`{"email":"user@test.local","password":"wrongpass8"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	res, sess := doSessionRequest(t, handler.HandleLoginForTest, sessionManager, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if sess.User() != "" {
		t.Fatalf("session must not be bound after failed login")
	}
}

func TestSignupCreatesAccount(t *testing.T) {
	repo := &stubRepo{}
	handler, sessionManager := newAuthHandler(t, repo)

	body := strings.NewReader(`{"email":"new@test.local","password":"longenough","display_name":"New User"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", body)
	res, sess := doSessionRequest(t, handler.HandleSignupForTest, sessionManager, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["user_id"] == nil {
		t.Fatal("expected user_id in response")
	}
	if sess.User() != "7" {
		t.Fatalf("expected session bound to new user, got %q", sess.User())
	}
}

func TestSignupRejectsShortPassword(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubRepo{})

	body := strings.NewReader(`{"email":"new@test.local","password":"short"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", body)
	res, _ := doSessionRequest(t, handler.HandleSignupForTest, sessionManager, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}
