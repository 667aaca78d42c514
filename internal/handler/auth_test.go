package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jcr-pos/api/internal/database"
	"github.com/jcr-pos/api/internal/handler"
	"golang.org/x/crypto/bcrypt"
)

type mockAuthStore struct {
	getUserByUsernameFn func(ctx context.Context, username string) (database.User, error)
	createUserFn        func(ctx context.Context, arg database.CreateUserParams) (database.User, error)
}

func (m *mockAuthStore) GetUserByUsername(ctx context.Context, username string) (database.User, error) {
	if m.getUserByUsernameFn != nil {
		return m.getUserByUsernameFn(ctx, username)
	}
	return database.User{}, pgx.ErrNoRows
}

func (m *mockAuthStore) CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(ctx, arg)
	}
	return database.User{}, nil
}

func newAuthRouter(store *mockAuthStore) chi.Router {
	h := handler.NewAuthHandler(store, "test-secret")
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	h.RegisterAdminRoutes(r)
	return r
}

func testUser(t *testing.T, password string) database.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return database.User{
		ID:             uuid.New(),
		Name:           "Ana",
		Username:       "ana",
		HashedPassword: string(hashed),
		Role:           "staff",
	}
}

func TestLogin_Success(t *testing.T) {
	user := testUser(t, "secret123")
	store := &mockAuthStore{
		getUserByUsernameFn: func(ctx context.Context, username string) (database.User, error) {
			if username != "ana" {
				return database.User{}, pgx.ErrNoRows
			}
			return user, nil
		},
	}
	r := newAuthRouter(store)

	rec := doJSON(t, r, http.MethodPost, "/auth/login",
		map[string]string{"username": "ana", "password": "secret123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
		User  struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Error("expected a token")
	}
	if resp.User.Username != "ana" || resp.User.Role != "staff" {
		t.Errorf("unexpected user payload: %+v", resp.User)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	user := testUser(t, "secret123")
	store := &mockAuthStore{
		getUserByUsernameFn: func(ctx context.Context, username string) (database.User, error) {
			return user, nil
		},
	}
	r := newAuthRouter(store)

	rec := doJSON(t, r, http.MethodPost, "/auth/login",
		map[string]string{"username": "ana", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	r := newAuthRouter(&mockAuthStore{})

	rec := doJSON(t, r, http.MethodPost, "/auth/login",
		map[string]string{"username": "ghost", "password": "whatever"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	r := newAuthRouter(&mockAuthStore{})

	rec := doJSON(t, r, http.MethodPost, "/auth/login",
		map[string]string{"username": "ana"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateUser_HashesPassword(t *testing.T) {
	var created database.CreateUserParams
	store := &mockAuthStore{
		createUserFn: func(ctx context.Context, arg database.CreateUserParams) (database.User, error) {
			created = arg
			return database.User{
				ID:       uuid.New(),
				Name:     arg.Name,
				Username: arg.Username,
				Role:     arg.Role,
			}, nil
		},
	}
	r := newAuthRouter(store)

	rec := doJSON(t, r, http.MethodPost, "/auth/users", map[string]string{
		"name":     "Ben",
		"username": "ben",
		"password": "hunter22",
		"role":     "staff",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if created.HashedPassword == "hunter22" {
		t.Error("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(created.HashedPassword), []byte("hunter22")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestCreateUser_RejectsBadRole(t *testing.T) {
	r := newAuthRouter(&mockAuthStore{})

	rec := doJSON(t, r, http.MethodPost, "/auth/users", map[string]string{
		"name":     "Ben",
		"username": "ben",
		"password": "hunter22",
		"role":     "owner",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
