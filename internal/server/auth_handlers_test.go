package server

import (
	"net/http"
	"testing"

	"alltrade/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignup(t *testing.T) {
	s := newTestServer(t, nil)
	app := authedApp(0)
	app.Post("/api/auth/signup", s.Signup)

	tests := []struct {
		name           string
		body           map[string]string
		expectedStatus int
	}{
		{
			name: "Success",
			body: map[string]string{
				"username": "alice",
				"email":    "alice@example.com",
				"password": "Str0ngPass!word",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "Missing Fields",
			body: map[string]string{
				"username": "bob",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Duplicate Email",
			body: map[string]string{
				"username": "alice2",
				"email":    "alice@example.com",
				"password": "Str0ngPass!word",
			},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/signup", tt.body), 5000)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestSignup_ReturnsToken(t *testing.T) {
	s := newTestServer(t, nil)
	app := authedApp(0)
	app.Post("/api/auth/signup", s.Signup)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/signup", map[string]string{
		"username": "carol",
		"email":    "carol@example.com",
		"password": "Str0ngPass!word",
	}), 5000)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decodeBody(t, resp, &body)
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, "carol", body.User.Username)
	assert.NotZero(t, body.User.ID)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, nil)
	user := createTestUser(t, s.db, "dave")
	disabled := createTestUser(t, s.db, "mallory")
	require.NoError(t, s.db.Model(disabled).Update("is_disabled", true).Error)

	app := authedApp(0)
	app.Post("/api/auth/login", s.Login)

	tests := []struct {
		name           string
		email          string
		password       string
		expectedStatus int
	}{
		{"Success", user.Email, "password123", http.StatusOK},
		{"Wrong Password", user.Email, "not-the-password", http.StatusUnauthorized},
		{"Unknown Email", "nobody@example.com", "password123", http.StatusUnauthorized},
		{"Disabled Account", disabled.Email, "password123", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
				"email":    tt.email,
				"password": tt.password,
			}), 5000)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestRefresh_IssuesNewTokenAndRevokesOld(t *testing.T) {
	s := newTestServer(t, nil)
	user := createTestUser(t, s.db, "erin")

	token, err := s.generateToken(user.ID, user.Username)
	require.NoError(t, err)

	app := authedApp(0)
	app.Post("/api/auth/refresh", s.Refresh)

	req := jsonRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &body)
	assert.NotEmpty(t, body.Token)
	assert.NotEqual(t, token, body.Token)

	// Old token's JTI must now be blacklisted.
	keys, err := s.redis.Keys(t.Context(), "blacklist:*").Result()
	require.NoError(t, err)
	assert.NotEmpty(t, keys)
}

func TestRefresh_RejectsInvalidToken(t *testing.T) {
	s := newTestServer(t, nil)
	app := authedApp(0)
	app.Post("/api/auth/refresh", s.Refresh)

	req := jsonRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t, nil)
	user := createTestUser(t, s.db, "frank")

	token, err := s.generateToken(user.ID, user.Username)
	require.NoError(t, err)

	app := authedApp(0)
	app.Post("/api/auth/logout", s.Logout)

	req := jsonRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	keys, err := s.redis.Keys(t.Context(), "blacklist:*").Result()
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	// Logging out without a token still succeeds.
	resp2, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/logout", nil), 5000)
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestIssueWSTicket(t *testing.T) {
	s := newTestServer(t, nil)
	user := createTestUser(t, s.db, "grace")

	app := authedApp(user.ID)
	app.Post("/api/ws/ticket", s.IssueWSTicket)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/ws/ticket", nil), 5000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Ticket    string `json:"ticket"`
		ExpiresIn int    `json:"expires_in"`
	}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.Ticket)
	assert.Equal(t, 60, body.ExpiresIn)

	stored, err := s.redis.Get(t.Context(), "ws_ticket:"+body.Ticket).Result()
	require.NoError(t, err)
	assert.NotEmpty(t, stored)
}
