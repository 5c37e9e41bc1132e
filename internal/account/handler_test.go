package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kolabnaskah/internal/account/repository"
	"kolabnaskah/internal/account/service"
	"kolabnaskah/internal/session"
	"kolabnaskah/middleware"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const userID = "0b5c7a0e-2c1f-4a7e-9a3e-6f0d2c1b9e22"

func setup(t *testing.T) (*AccountHandler, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := service.NewAccountService(repository.NewAccountRepository(db), session.NewManager("test-secret", time.Hour, nil))
	svc.Cost = bcrypt.MinCost
	return NewAccountHandler(svc), mock
}

func authed(req *http.Request) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
}

func TestSignInSetsSessionCookie(t *testing.T) {
	h, mock := setup(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, email, created_at, password_hash FROM users`).
		WithArgs("ana@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "created_at", "password_hash"}).
			AddRow(userID, "ana@example.com", time.Now(), string(hash)))

	rec := httptest.NewRecorder()
	h.SignIn(rec, httptest.NewRequest(http.MethodPost, "/api/auth/signin",
		strings.NewReader(`{"email":"ana@example.com","password":"secret1"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
}

func TestPasswordMismatchIssuesNoQuery(t *testing.T) {
	h, mock := setup(t)

	rec := httptest.NewRecorder()
	h.UpdatePassword(rec, authed(httptest.NewRequest(http.MethodPut, "/api/auth/password",
		strings.NewReader(`{"password":"abcdef","confirm_password":"abcxyz"}`))))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Passwords do not match")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePasswordSuccess(t *testing.T) {
	h, mock := setup(t)
	mock.ExpectExec(`UPDATE users SET password_hash`).
		WithArgs(sqlmock.AnyArg(), userID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := httptest.NewRecorder()
	h.UpdatePassword(rec, authed(httptest.NewRequest(http.MethodPut, "/api/auth/password",
		strings.NewReader(`{"password":"abcdef","confirm_password":"abcdef"}`))))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Password updated successfully", rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignOutClearsCookie(t *testing.T) {
	h, _ := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signout", nil)
	req = req.WithContext(session.WithSession(req.Context(), &session.Session{UserID: userID}))
	rec := httptest.NewRecorder()
	h.SignOut(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}
