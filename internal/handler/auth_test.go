package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/mindflow/internal/apperror"
	"github.com/sakif/mindflow/internal/handler"
	"github.com/sakif/mindflow/internal/model"
	"github.com/sakif/mindflow/internal/service"
)

type fakeAuthService struct {
	gotEmail, gotPassword, gotName string
	deletedID                      string

	result *service.AuthResult
	err    error
}

func (f *fakeAuthService) Register(_ context.Context, email, password, name string) (*service.AuthResult, error) {
	f.gotEmail, f.gotPassword, f.gotName = email, password, name
	return f.result, f.err
}

func (f *fakeAuthService) Login(_ context.Context, email, password string) (*service.AuthResult, error) {
	f.gotEmail, f.gotPassword = email, password
	return f.result, f.err
}

func (f *fakeAuthService) DeleteAccount(_ context.Context, userID string) error {
	f.deletedID = userID
	return f.err
}

func sampleAuthResult() *service.AuthResult {
	return &service.AuthResult{
		Token: "signed.jwt.token",
		User:  &model.User{ID: "u1", Email: "ada@example.com", Name: "Ada", Credits: 10, Password: "$2a$hash"},
	}
}

func TestAuthHandler_HandleRegister(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := &fakeAuthService{result: sampleAuthResult()}
		h := handler.NewAuthHandler(svc, testLogger())

		body := `{"email":"ada@example.com","password":"hunter22","name":"Ada"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "ada@example.com", svc.gotEmail)
		assert.Equal(t, "hunter22", svc.gotPassword)
		assert.Equal(t, "Ada", svc.gotName)

		var res handler.AuthResponse
		require.NoError(t, json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&res))
		assert.Equal(t, "signed.jwt.token", res.Token)
		assert.Equal(t, handler.UserResponse{ID: "u1", Email: "ada@example.com", Name: "Ada", Credits: 10}, res.User)
		assert.NotContains(t, rr.Body.String(), "$2a$hash")
	})

	t.Run("missing password", func(t *testing.T) {
		svc := &fakeAuthService{}
		h := handler.NewAuthHandler(svc, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(`{"email":"ada@example.com"}`))
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "password is required")
		assert.Empty(t, svc.gotEmail, "service must not be called")
	})

	t.Run("malformed email", func(t *testing.T) {
		h := handler.NewAuthHandler(&fakeAuthService{}, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(`{"email":"nope","password":"x"}`))
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "valid email")
	})

	t.Run("email taken", func(t *testing.T) {
		svc := &fakeAuthService{err: apperror.ValidationFailed("email", "User already exists")}
		h := handler.NewAuthHandler(svc, testLogger())

		body := `{"email":"ada@example.com","password":"hunter22"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "User already exists")
	})

	t.Run("invalid json", func(t *testing.T) {
		h := handler.NewAuthHandler(&fakeAuthService{}, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(`{"email":`))
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAuthHandler_HandleLogin(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		svc := &fakeAuthService{result: sampleAuthResult()}
		h := handler.NewAuthHandler(svc, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"email":"ada@example.com","password":"hunter22"}`))
		rr := httptest.NewRecorder()

		h.HandleLogin(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"token":"signed.jwt.token"`)
	})

	t.Run("bad credentials", func(t *testing.T) {
		svc := &fakeAuthService{err: apperror.ValidationFailed("", "Invalid email or password")}
		h := handler.NewAuthHandler(svc, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"email":"ada@example.com","password":"wrong"}`))
		rr := httptest.NewRecorder()

		h.HandleLogin(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid email or password")
	})
}

func TestAuthHandler_HandleDeleteAccount(t *testing.T) {
	t.Run("deletes caller", func(t *testing.T) {
		svc := &fakeAuthService{}
		h := handler.NewAuthHandler(svc, testLogger())

		req := asUser(httptest.NewRequest(http.MethodDelete, "/api/auth/account", nil), "u1")
		rr := httptest.NewRecorder()

		h.HandleDeleteAccount(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "u1", svc.deletedID)
		assert.Contains(t, rr.Body.String(), "Account deleted successfully")
	})

	t.Run("no claims", func(t *testing.T) {
		svc := &fakeAuthService{}
		h := handler.NewAuthHandler(svc, testLogger())

		req := httptest.NewRequest(http.MethodDelete, "/api/auth/account", nil)
		rr := httptest.NewRecorder()

		h.HandleDeleteAccount(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Empty(t, svc.deletedID)
	})
}
