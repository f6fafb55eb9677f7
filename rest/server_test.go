package rest_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/goliatone/go-tasks"
	"github.com/goliatone/go-tasks/rest"
)

type serverConfig struct{}

func (serverConfig) GetSigningKey() string              { return "integration-test-key" }
func (serverConfig) GetTokenExpiration() int            { return 1 }
func (serverConfig) GetIssuer() string                  { return "go-tasks-test" }
func (serverConfig) GetAuthScheme() string              { return "Bearer" }
func (serverConfig) GetPasswordMinLength() int          { return 6 }
func (serverConfig) GetResetTokenWindow() time.Duration { return 10 * time.Minute }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testEnv struct {
	app  *fiber.App
	repo tasks.RepositoryManager
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithMailer(t, nil)
}

func newTestEnvWithMailer(t *testing.T, mailer tasks.Mailer) *testEnv {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqldb.Close() })

	require.NoError(t, tasks.RunMigrations(context.Background(), sqldb))

	db := bun.NewDB(sqldb, sqlitedialect.New())
	repo := tasks.NewRepositoryManager(db)

	cfg := serverConfig{}
	auther := tasks.NewAuthenticator(tasks.NewUsersIdentityProvider(repo.Users()), cfg)

	srv := rest.NewServer(rest.Options{
		Repo:       repo,
		Auther:     auther,
		Policy:     tasks.NewPasswordPolicy(cfg.GetPasswordMinLength()),
		Mailer:     mailer,
		Window:     cfg.GetResetTokenWindow(),
		AuthScheme: cfg.GetAuthScheme(),
	})

	return &testEnv{app: srv.App(), repo: repo}
}

// mailerFunc adapts a function to the Mailer interface.
type mailerFunc func(ctx context.Context, msg tasks.MailMessage) error

func (f mailerFunc) Send(ctx context.Context, msg tasks.MailMessage) error {
	return f(ctx, msg)
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)

	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))

	return resp.StatusCode, env
}

// createUser seeds an account directly in storage, bypassing the
// register flow.
func (e *testEnv) createUser(t *testing.T, email, password, role string, active bool) *tasks.User {
	t.Helper()

	hash, err := tasks.HashPassword(password)
	require.NoError(t, err)

	user, err := e.repo.Users().Create(context.Background(), &tasks.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
	})
	require.NoError(t, err)

	return user
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()

	status, env := e.request(t, http.MethodPost, "/api/v1/auth/login", "", fiber.Map{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, status)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)

	return data.Token
}

func TestRegisterAndLogin(t *testing.T) {
	e := newTestEnv(t)

	t.Run("register rejects a short password", func(t *testing.T) {
		status, env := e.request(t, http.MethodPost, "/api/v1/auth/register", "", fiber.Map{
			"email":    "pepe.rone@example.com",
			"password": "123",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.False(t, env.Success)
		assert.Equal(t, "Password is not valid.", env.Error)
	})

	t.Run("register creates an inactive account", func(t *testing.T) {
		status, env := e.request(t, http.MethodPost, "/api/v1/auth/register", "", fiber.Map{
			"email":    "pepe.rone@example.com",
			"password": "123456",
		})
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, env.Success)

		user, err := e.repo.Users().GetByEmail(context.Background(), "pepe.rone@example.com")
		require.NoError(t, err)
		assert.False(t, user.IsActive)
		assert.Equal(t, tasks.RoleUser, user.Role)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		status, env := e.request(t, http.MethodPost, "/api/v1/auth/register", "", fiber.Map{
			"email":    "pepe.rone@example.com",
			"password": "123456",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Unique values are required.", env.Error)
	})

	t.Run("login before activation fails", func(t *testing.T) {
		status, env := e.request(t, http.MethodPost, "/api/v1/auth/login", "", fiber.Map{
			"email":    "pepe.rone@example.com",
			"password": "123456",
		})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "User account is not active.", env.Error)
	})

	t.Run("unknown email and wrong password share a message", func(t *testing.T) {
		status, env := e.request(t, http.MethodPost, "/api/v1/auth/login", "", fiber.Map{
			"email":    "nobody@example.com",
			"password": "123456",
		})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Email and/or password are not valid.", env.Error)

		e.createUser(t, "active.user@example.com", "secret123", tasks.RoleUser, true)

		status, env = e.request(t, http.MethodPost, "/api/v1/auth/login", "", fiber.Map{
			"email":    "active.user@example.com",
			"password": "wrong-password",
		})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Email and/or password are not valid.", env.Error)
	})

	t.Run("login succeeds for an active account", func(t *testing.T) {
		token := e.login(t, "active.user@example.com", "secret123")
		assert.NotEmpty(t, token)
	})
}

func TestPasswordResetFlow(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	e.createUser(t, "reset.me@example.com", "original1", tasks.RoleUser, true)
	e.createUser(t, "sleeper@example.com", "original1", tasks.RoleUser, false)

	t.Run("unknown email", func(t *testing.T) {
		status, env := e.request(t, http.MethodPost, "/api/v1/auth/forgotpassword", "", fiber.Map{
			"email": "nobody@example.com",
		})
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "User account could not be found.", env.Error)
	})

	t.Run("inactive account", func(t *testing.T) {
		status, env := e.request(t, http.MethodPost, "/api/v1/auth/forgotpassword", "", fiber.Map{
			"email": "sleeper@example.com",
		})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "User is not authorized to make this request.", env.Error)
	})

	t.Run("delivery failure rolls up as a server error", func(t *testing.T) {
		failing := newTestEnvWithMailer(t, mailerFunc(func(context.Context, tasks.MailMessage) error {
			return fmt.Errorf("smtp relay unreachable")
		}))
		failing.createUser(t, "undeliverable@example.com", "original1", tasks.RoleUser, true)

		status, env := failing.request(t, http.MethodPost, "/api/v1/auth/forgotpassword", "", fiber.Map{
			"email": "undeliverable@example.com",
		})
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.False(t, env.Success)
		assert.Equal(t, "failed to send password reset notification", env.Error)
	})

	t.Run("active account gets a token with a window", func(t *testing.T) {
		status, _ := e.request(t, http.MethodPost, "/api/v1/auth/forgotpassword", "", fiber.Map{
			"email": "reset.me@example.com",
		})
		require.Equal(t, http.StatusOK, status)

		user, err := e.repo.Users().GetByEmail(ctx, "reset.me@example.com")
		require.NoError(t, err)
		assert.NotEmpty(t, user.ResetToken)
		require.NotNil(t, user.ResetTokenExpiresAt)
		assert.True(t, user.HasOpenReset(time.Now()))
		assert.WithinDuration(t, time.Now().Add(10*time.Minute), *user.ResetTokenExpiresAt, time.Minute)
	})

	t.Run("invalid token", func(t *testing.T) {
		status, env := e.request(t, http.MethodPut, "/api/v1/auth/resetpassword/deadbeefdeadbeefdeadbeef", "", fiber.Map{
			"password": "newpass1",
		})
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "The password reset token is either invalid or expired.", env.Error)
	})

	t.Run("valid token rejects a short password", func(t *testing.T) {
		user, err := e.repo.Users().GetByEmail(ctx, "reset.me@example.com")
		require.NoError(t, err)

		status, env := e.request(t, http.MethodPut, "/api/v1/auth/resetpassword/"+user.ResetToken, "", fiber.Map{
			"password": "123",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Password is not valid.", env.Error)
	})

	t.Run("valid token replaces the password once", func(t *testing.T) {
		user, err := e.repo.Users().GetByEmail(ctx, "reset.me@example.com")
		require.NoError(t, err)
		token := user.ResetToken

		status, _ := e.request(t, http.MethodPut, "/api/v1/auth/resetpassword/"+token, "", fiber.Map{
			"password": "newpass1",
		})
		require.Equal(t, http.StatusOK, status)

		user, err = e.repo.Users().GetByEmail(ctx, "reset.me@example.com")
		require.NoError(t, err)
		assert.Empty(t, user.ResetToken)
		assert.Nil(t, user.ResetTokenExpiresAt)

		status, env := e.request(t, http.MethodPut, "/api/v1/auth/resetpassword/"+token, "", fiber.Map{
			"password": "another1",
		})
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "The password reset token is either invalid or expired.", env.Error)

		e.login(t, "reset.me@example.com", "newpass1")
	})

	t.Run("expired token behaves like a missing one", func(t *testing.T) {
		user, err := e.repo.Users().GetByEmail(ctx, "reset.me@example.com")
		require.NoError(t, err)

		_, err = e.repo.Users().SetResetToken(ctx, user.ID, "aaaaaaaaaaaaaaaaaaaaaaaa", time.Now().Add(-time.Minute))
		require.NoError(t, err)

		status, env := e.request(t, http.MethodPut, "/api/v1/auth/resetpassword/aaaaaaaaaaaaaaaaaaaaaaaa", "", fiber.Map{
			"password": "newpass2",
		})
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "The password reset token is either invalid or expired.", env.Error)
	})
}

func TestChangePassword(t *testing.T) {
	e := newTestEnv(t)

	e.createUser(t, "change.me@example.com", "original1", tasks.RoleUser, true)

	t.Run("requires authentication", func(t *testing.T) {
		status, env := e.request(t, http.MethodPut, "/api/v1/auth/changepassword", "", fiber.Map{
			"password": "newpass1",
		})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "User is not authorized to access this route.", env.Error)
	})

	t.Run("rejects a short password", func(t *testing.T) {
		token := e.login(t, "change.me@example.com", "original1")

		status, env := e.request(t, http.MethodPut, "/api/v1/auth/changepassword", token, fiber.Map{
			"password": "123",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Password is not valid.", env.Error)
	})

	t.Run("replaces the password", func(t *testing.T) {
		token := e.login(t, "change.me@example.com", "original1")

		status, _ := e.request(t, http.MethodPut, "/api/v1/auth/changepassword", token, fiber.Map{
			"password": "rotated1",
		})
		require.Equal(t, http.StatusOK, status)

		e.login(t, "change.me@example.com", "rotated1")
	})
}

func TestTasksOwnership(t *testing.T) {
	e := newTestEnv(t)

	e.createUser(t, "alice@example.com", "secret123", tasks.RoleUser, true)
	e.createUser(t, "bob@example.com", "secret123", tasks.RoleUser, true)

	aliceToken := e.login(t, "alice@example.com", "secret123")
	bobToken := e.login(t, "bob@example.com", "secret123")

	var taskID string

	t.Run("create stamps the owner", func(t *testing.T) {
		status, env := e.request(t, http.MethodPost, "/api/v1/tasks", aliceToken, fiber.Map{
			"title": "write report",
		})
		require.Equal(t, http.StatusCreated, status)

		var task tasks.Task
		require.NoError(t, json.Unmarshal(env.Data, &task))
		assert.Equal(t, "write report", task.Title)
		taskID = task.ID.String()
	})

	t.Run("list is scoped to the requester", func(t *testing.T) {
		status, env := e.request(t, http.MethodGet, "/api/v1/tasks", aliceToken, nil)
		require.Equal(t, http.StatusOK, status)

		var records []tasks.Task
		require.NoError(t, json.Unmarshal(env.Data, &records))
		assert.Len(t, records, 1)

		status, env = e.request(t, http.MethodGet, "/api/v1/tasks", bobToken, nil)
		require.Equal(t, http.StatusOK, status)
		require.NoError(t, json.Unmarshal(env.Data, &records))
		assert.Empty(t, records)
	})

	t.Run("non owner is rejected per operation", func(t *testing.T) {
		status, env := e.request(t, http.MethodGet, "/api/v1/tasks/"+taskID, bobToken, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "User is not authorized to access this task.", env.Error)

		status, env = e.request(t, http.MethodPut, "/api/v1/tasks/"+taskID, bobToken, fiber.Map{
			"title": "hijacked",
		})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "User is not authorized to update this task.", env.Error)

		status, env = e.request(t, http.MethodDelete, "/api/v1/tasks/"+taskID, bobToken, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "User is not authorized to delete this task.", env.Error)
	})

	t.Run("existence is checked before ownership", func(t *testing.T) {
		status, env := e.request(t, http.MethodGet, "/api/v1/tasks/b82f6ee9-3cb6-487e-a076-cd4f4bae55f2", bobToken, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "Task could not be found.", env.Error)
	})

	t.Run("malformed id behaves like a missing resource", func(t *testing.T) {
		status, env := e.request(t, http.MethodGet, "/api/v1/tasks/not-a-uuid", aliceToken, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "The specified resource could not be found.", env.Error)
	})

	t.Run("owner can update and delete", func(t *testing.T) {
		status, env := e.request(t, http.MethodPut, "/api/v1/tasks/"+taskID, aliceToken, fiber.Map{
			"title": "write final report",
		})
		require.Equal(t, http.StatusOK, status)

		var task tasks.Task
		require.NoError(t, json.Unmarshal(env.Data, &task))
		assert.Equal(t, "write final report", task.Title)

		status, _ = e.request(t, http.MethodDelete, "/api/v1/tasks/"+taskID, aliceToken, nil)
		require.Equal(t, http.StatusOK, status)

		status, _ = e.request(t, http.MethodGet, "/api/v1/tasks/"+taskID, aliceToken, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("missing bearer token", func(t *testing.T) {
		status, env := e.request(t, http.MethodGet, "/api/v1/tasks", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "User is not authorized to access this route.", env.Error)
	})
}

func TestUsersAdmin(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	e.createUser(t, "admin@example.com", "secret123", tasks.RoleAdmin, true)
	e.createUser(t, "mortal@example.com", "secret123", tasks.RoleUser, true)

	adminToken := e.login(t, "admin@example.com", "secret123")
	mortalToken := e.login(t, "mortal@example.com", "secret123")

	t.Run("non admin is rejected", func(t *testing.T) {
		status, env := e.request(t, http.MethodGet, "/api/v1/users", mortalToken, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "User is not authorized to access this route.", env.Error)
	})

	t.Run("admin lists users", func(t *testing.T) {
		status, env := e.request(t, http.MethodGet, "/api/v1/users", adminToken, nil)
		require.Equal(t, http.StatusOK, status)

		var records []tasks.User
		require.NoError(t, json.Unmarshal(env.Data, &records))
		assert.Len(t, records, 2)
	})

	var createdID string

	t.Run("admin creates an active user with a role", func(t *testing.T) {
		status, env := e.request(t, http.MethodPost, "/api/v1/users", adminToken, fiber.Map{
			"email":     "new.hire@example.com",
			"password":  "welcome1",
			"is_active": true,
			"user_role": "user",
		})
		require.Equal(t, http.StatusCreated, status)

		var user tasks.User
		require.NoError(t, json.Unmarshal(env.Data, &user))
		assert.True(t, user.IsActive)
		createdID = user.ID.String()

		e.login(t, "new.hire@example.com", "welcome1")
	})

	t.Run("create validates password and role", func(t *testing.T) {
		status, env := e.request(t, http.MethodPost, "/api/v1/users", adminToken, fiber.Map{
			"email":    "short.pw@example.com",
			"password": "123",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Password is not valid.", env.Error)

		status, _ = e.request(t, http.MethodPost, "/api/v1/users", adminToken, fiber.Map{
			"email":     "weird.role@example.com",
			"password":  "welcome1",
			"user_role": "superuser",
		})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("get by id", func(t *testing.T) {
		status, env := e.request(t, http.MethodGet, "/api/v1/users/"+createdID, adminToken, nil)
		require.Equal(t, http.StatusOK, status)

		var user tasks.User
		require.NoError(t, json.Unmarshal(env.Data, &user))
		assert.Equal(t, "new.hire@example.com", user.Email)

		status, env = e.request(t, http.MethodGet, "/api/v1/users/b82f6ee9-3cb6-487e-a076-cd4f4bae55f2", adminToken, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "User account could not be found.", env.Error)

		status, env = e.request(t, http.MethodGet, "/api/v1/users/not-a-uuid", adminToken, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "The specified resource could not be found.", env.Error)
	})

	t.Run("update mutates only the provided fields", func(t *testing.T) {
		status, env := e.request(t, http.MethodPut, "/api/v1/users/"+createdID, adminToken, fiber.Map{
			"user_role": "admin",
		})
		require.Equal(t, http.StatusOK, status)

		var user tasks.User
		require.NoError(t, json.Unmarshal(env.Data, &user))
		assert.Equal(t, tasks.RoleAdmin, user.Role)
		assert.Equal(t, "new.hire@example.com", user.Email)
	})

	t.Run("deactivation takes effect on the next request", func(t *testing.T) {
		newHireToken := e.login(t, "new.hire@example.com", "welcome1")

		inactive := false
		user, err := e.repo.Users().GetByEmail(ctx, "new.hire@example.com")
		require.NoError(t, err)
		_, err = e.repo.Users().UpdateFields(ctx, user.ID, tasks.UserUpdate{IsActive: &inactive})
		require.NoError(t, err)

		status, env := e.request(t, http.MethodGet, "/api/v1/tasks", newHireToken, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "User is not authorized to access this route.", env.Error)
	})

	t.Run("delete returns the removed record", func(t *testing.T) {
		status, env := e.request(t, http.MethodDelete, "/api/v1/users/"+createdID, adminToken, nil)
		require.Equal(t, http.StatusOK, status)

		var user tasks.User
		require.NoError(t, json.Unmarshal(env.Data, &user))
		assert.Equal(t, "new.hire@example.com", user.Email)

		status, _ = e.request(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%s", createdID), adminToken, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
}
