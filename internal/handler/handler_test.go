package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chat-server/config"
	"chat-server/internal/model"
	"chat-server/internal/service"
	"chat-server/pkg/apperr"
	"chat-server/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuth struct {
	signupErr error
	loginErr  error
	forgotErr error
	emails    []string
}

func (s *stubAuth) Signup(_ context.Context, in service.SignupInput) (*model.User, error) {
	if s.signupErr != nil {
		return nil, s.signupErr
	}
	return &model.User{ID: 1, Username: in.Username, Email: in.Email}, nil
}

func (s *stubAuth) VerifyEmail(_ context.Context, token string) error {
	if token != "good" {
		return apperr.Validation("Invalid or expired verification token")
	}
	return nil
}

func (s *stubAuth) Login(_ context.Context, email, _ string) (*service.LoginResult, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &service.LoginResult{Token: "signed-token", User: &model.User{ID: 7, Username: "alice", Email: email}}, nil
}

func (s *stubAuth) ForgotPassword(_ context.Context, email string) error {
	s.emails = append(s.emails, email)
	return s.forgotErr
}

func (s *stubAuth) ResetPassword(context.Context, string, string) error { return nil }

type stubUsers struct {
	users []model.User
	err   error
}

func (s *stubUsers) List(_ context.Context, callerID uint) ([]model.User, error) {
	var out []model.User
	for _, u := range s.users {
		if u.ID != callerID {
			out = append(out, u)
		}
	}
	return out, s.err
}

func (s *stubUsers) Get(_ context.Context, id uint) (*model.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("User not found")
}

func (s *stubUsers) OnlineIDs(context.Context) ([]uint, error) { return []uint{1}, s.err }

type stubMessages struct {
	err error
}

func (s *stubMessages) History(_ context.Context, a, b uint) ([]model.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []model.Message{{ID: 1, SenderID: a, ReceiverID: b, Text: "hi", Status: model.MessageStatusSent}}, nil
}

func (s *stubMessages) UnreadCounts(context.Context, uint) (map[uint]int64, error) {
	return map[uint]int64{2: 3}, s.err
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router *gin.Engine
	jwt    *jwt.JWTService
	auth   *stubAuth
	users  *stubUsers
	msgs   *stubMessages
}

var resetDigest = "reset-digest"

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)
	s := &testServer{
		jwt:  jwt.NewJWTService(config.JWTConfig{Secret: "test-secret", Issuer: "chat-server"}),
		auth: &stubAuth{},
		users: &stubUsers{users: []model.User{
			{ID: 1, Username: "alice", Email: "alice@example.com", PasswordHash: "$2a$10$secret", ResetPasswordToken: &resetDigest},
			{ID: 2, Username: "bob", Email: "bob@example.com"},
		}},
		msgs: &stubMessages{},
	}

	r := gin.New()
	authH := NewAuthHandler(s.auth, false)
	userH := NewUserHandler(s.users)
	msgH := NewMessageHandler(s.msgs)

	api := r.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/signup", authH.Signup)
	auth.GET("/verify-email", authH.VerifyEmail)
	auth.POST("/login", authH.Login)
	auth.POST("/logout", authH.Logout)
	auth.POST("/forgot-password", authH.ForgotPassword)
	auth.POST("/reset-password", authH.ResetPassword)

	protected := api.Group("", s.jwt.AuthMiddleware())
	protected.GET("/users", userH.List)
	protected.GET("/users/profile", userH.Profile)
	protected.GET("/users/online", userH.Online)
	protected.GET("/users/:id", userH.GetByID)
	protected.GET("/messages/unread-counts", msgH.UnreadCounts)
	protected.GET("/messages/:id", msgH.History)

	s.router = r
	return s
}

func (s *testServer) do(t *testing.T, method, path, body string, userID uint) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		token, err := s.jwt.Issue(jwt.Identity{UserID: userID, Email: "u@example.com"})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestSignup(t *testing.T) {
	s := newTestServer()

	w, env := s.do(t, http.MethodPost, "/api/auth/signup", `{"username":"alice","email":"alice@example.com","password":"secret1"}`, 0)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)
	assert.NotContains(t, string(env.Data), "password")

	s.auth.signupErr = apperr.Conflict("User already exists")
	w, env = s.do(t, http.MethodPost, "/api/auth/signup", `{"username":"alice","email":"alice@example.com","password":"secret1"}`, 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists", env.Message)
}

func TestSignup_MalformedBody(t *testing.T) {
	s := newTestServer()
	w, env := s.do(t, http.MethodPost, "/api/auth/signup", `{`, 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
}

func TestSignup_StoreErrorIsBadRequest(t *testing.T) {
	s := newTestServer()
	s.auth.signupErr = apperr.Store("Internal server error", errors.New("db down"))

	w, _ := s.do(t, http.MethodPost, "/api/auth/signup", `{"username":"a","email":"a@b.c","password":"secret1"}`, 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyEmail(t *testing.T) {
	s := newTestServer()

	w, env := s.do(t, http.MethodGet, "/api/auth/verify-email?token=good", "", 0)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Email verified successfully.", env.Message)

	w, env = s.do(t, http.MethodGet, "/api/auth/verify-email?token=bad", "", 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or expired verification token", env.Message)
}

func TestLogin_SetsCookieAndReturnsToken(t *testing.T) {
	s := newTestServer()

	w, env := s.do(t, http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"secret1"}`, 0)
	require.Equal(t, http.StatusOK, w.Code)

	var data LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "signed-token", data.Token)
	assert.Equal(t, uint(7), data.User.ID)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, jwt.TokenCookieName, cookies[0].Name)
	assert.Equal(t, "signed-token", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 24*60*60, cookies[0].MaxAge)
}

func TestLogin_Rejected(t *testing.T) {
	s := newTestServer()
	s.auth.loginErr = apperr.Validation("Invalid email or password")

	w, env := s.do(t, http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"x"}`, 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid email or password", env.Message)
	assert.Empty(t, w.Result().Cookies())
}

func TestLogout_ClearsCookie(t *testing.T) {
	s := newTestServer()
	w, _ := s.do(t, http.MethodPost, "/api/auth/logout", "", 0)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestForgotPassword_IdenticalResponses(t *testing.T) {
	s := newTestServer()

	w1, _ := s.do(t, http.MethodPost, "/api/auth/forgot-password", `{"email":"alice@example.com"}`, 0)
	w2, _ := s.do(t, http.MethodPost, "/api/auth/forgot-password", `{"email":"ghost@example.com"}`, 0)

	assert.Equal(t, http.StatusOK, w1.Code)
	assert.Equal(t, w1.Code, w2.Code)
	assert.Equal(t, w1.Body.String(), w2.Body.String())
	assert.Equal(t, []string{"alice@example.com", "ghost@example.com"}, s.auth.emails)
}

func TestResetPassword(t *testing.T) {
	s := newTestServer()
	w, env := s.do(t, http.MethodPost, "/api/auth/reset-password", `{"token":"t","password":"newsecret"}`, 0)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestUsers_RequireToken(t *testing.T) {
	s := newTestServer()
	w, env := s.do(t, http.MethodGet, "/api/users", "", 0)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "No token provided", env.Message)
}

func TestUsers_ListExcludesCaller(t *testing.T) {
	s := newTestServer()
	w, env := s.do(t, http.MethodGet, "/api/users", "", 1)
	require.Equal(t, http.StatusOK, w.Code)

	var users []model.User
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Username)
}

func TestUsers_ProfileAndByID(t *testing.T) {
	s := newTestServer()

	w, env := s.do(t, http.MethodGet, "/api/users/profile", "", 2)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"username":"bob"`)

	// 按ID可以查看其他用户，但不包含任何凭据字段
	w, env = s.do(t, http.MethodGet, "/api/users/1", "", 2)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"username":"alice"`)
	assert.NotContains(t, w.Body.String(), "$2a$10$secret")
	assert.NotContains(t, w.Body.String(), resetDigest)

	w, _ = s.do(t, http.MethodGet, "/api/users/99", "", 2)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/users/abc", "", 2)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsers_Online(t *testing.T) {
	s := newTestServer()
	w, env := s.do(t, http.MethodGet, "/api/users/online", "", 2)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[1]`, string(env.Data))
}

func TestMessages_History(t *testing.T) {
	s := newTestServer()

	w, env := s.do(t, http.MethodGet, "/api/messages/2", "", 1)
	require.Equal(t, http.StatusOK, w.Code)

	var msgs []model.Message
	require.NoError(t, json.Unmarshal(env.Data, &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, uint(1), msgs[0].SenderID)
	assert.Equal(t, uint(2), msgs[0].ReceiverID)
}

func TestMessages_StoreErrorIsInternal(t *testing.T) {
	s := newTestServer()
	s.msgs.err = apperr.Store("Internal server error", errors.New("db down"))

	w, env := s.do(t, http.MethodGet, "/api/messages/2", "", 1)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", env.Message)
}

func TestMessages_UnreadCounts(t *testing.T) {
	s := newTestServer()
	w, env := s.do(t, http.MethodGet, "/api/messages/unread-counts", "", 1)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"2":3}`, string(env.Data))
}

func TestMessages_InvalidTokenRejected(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/messages/2", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
