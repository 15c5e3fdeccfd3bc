package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/announce-service/internal/api/http/handlers"
	"github.com/spec-kit/announce-service/internal/auth"
	"github.com/spec-kit/announce-service/internal/config"
	"github.com/spec-kit/announce-service/internal/dispatch"
	"github.com/spec-kit/announce-service/internal/domain"
	"github.com/spec-kit/announce-service/internal/observability"
	"github.com/spec-kit/announce-service/internal/repository"
	"github.com/spec-kit/announce-service/internal/service"
)

const (
	serviceKey    = "svc-key"
	serviceSecret = "svc-secret"
	adminKey      = "admin-key"
	adminSecret   = "admin-secret"
)

type echoChannel struct{}

func (echoChannel) Send(_ context.Context, chatID int64, _ dispatch.Message) (string, error) {
	if chatID < 0 {
		return "", errors.New("chat not found")
	}
	return strconv.FormatInt(chatID+1000, 10), nil
}

func (echoChannel) Edit(_ context.Context, _ int64, ref string, _ dispatch.Message) (string, error) {
	return ref, nil
}

func (echoChannel) Delete(context.Context, int64, string) error { return nil }

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	metrics := observability.NewMetrics()

	users := service.NewUserService(store.Users)
	for _, in := range []service.UserCreateInput{
		{UserID: 1, Name: "writer", Whitelist: true},
		{UserID: 2, Name: "boss", Admin: true},
	} {
		if _, err := users.Create(ctx, in); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	authService := service.NewAuthService(config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5, BcryptCost: bcrypt.MinCost},
		service.AuthDependencies{APIKeyRepo: store.APIKeys})
	if _, err := authService.ImportAPIKey(ctx, serviceKey, serviceSecret, "svc", domain.APIKeyRoleService); err != nil {
		t.Fatalf("import key: %v", err)
	}
	if _, err := authService.ImportAPIKey(ctx, adminKey, adminSecret, "admin", domain.APIKeyRoleAdmin); err != nil {
		t.Fatalf("import key: %v", err)
	}
	chats := service.NewChatService(service.ChatDependencies{ChatRepo: store.Chats})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo: store.Tickets,
		UserRepo:   store.Users,
		Executor:   dispatch.NewExecutor(echoChannel{}, dispatch.Config{BatchSize: 2}, nil),
		Chats:      chats,
		Metrics:    metrics,
	})

	app := fiber.New()
	RegisterMiddlewares(app, nil, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("announce-service", "test", nil, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Chats:          handlers.NewChatsHandler(chats),
		Users:          handlers.NewUsersHandler(users),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), authService),
	})
	return app
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func do(t *testing.T, app *fiber.App, method, path, key, secret string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(auth.HeaderAPIKey, key)
		req.Header.Set(auth.HeaderAPISecret, secret)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, env
}

type ticketBody struct {
	ID                  string `json:"ticket_id"`
	Status              string `json:"status"`
	SuccessDestinations []struct {
		ChatID     int64  `json:"chat_id"`
		MessageRef string `json:"message_ref"`
	} `json:"success_destinations"`
	FailedDestinations []struct {
		ChatID int64  `json:"chat_id"`
		Error  string `json:"error"`
	} `json:"failed_destinations"`
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	status, env := do(t, app, http.MethodPost, "/tickets", serviceKey, serviceSecret, fiber.Map{
		"action":     "post_announcement",
		"creator_id": 1,
		"content":    fiber.Map{"text": "hello", "html": "<b>hello</b>"},
		"destinations": []fiber.Map{
			{"chat_id": 10, "chat_name": "ten"},
			{"chat_id": -20, "chat_name": "gone"},
		},
	})
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, err = %+v", status, env.Error)
	}
	var created ticketBody
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	if created.Status != "pending" || len(created.SuccessDestinations) != 0 || len(created.FailedDestinations) != 0 {
		t.Fatalf("created = %+v", created)
	}

	status, env = do(t, app, http.MethodPost, "/tickets/"+created.ID+"/approve", serviceKey, serviceSecret, fiber.Map{"approver_id": 1})
	if status != http.StatusForbidden || env.Error.Code != "PERMISSION_DENIED" {
		t.Fatalf("non-admin approve = %d %+v", status, env.Error)
	}

	status, env = do(t, app, http.MethodPost, "/tickets/"+created.ID+"/approve", serviceKey, serviceSecret, fiber.Map{"approver_id": 2})
	if status != http.StatusOK {
		t.Fatalf("approve status = %d, err = %+v", status, env.Error)
	}
	var approved ticketBody
	if err := json.Unmarshal(env.Data, &approved); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	if approved.Status != "approved" || len(approved.SuccessDestinations) != 1 || len(approved.FailedDestinations) != 1 {
		t.Fatalf("approved = %+v", approved)
	}
	if approved.SuccessDestinations[0].MessageRef != "1010" || approved.FailedDestinations[0].ChatID != -20 {
		t.Fatalf("approved outcome = %+v", approved)
	}

	status, env = do(t, app, http.MethodPost, "/tickets/"+created.ID+"/reject", serviceKey, serviceSecret, fiber.Map{"approver_id": 2})
	if status != http.StatusConflict || env.Error.Code != "INVALID_STATE" {
		t.Fatalf("reject after approve = %d %+v", status, env.Error)
	}

	status, env = do(t, app, http.MethodGet, "/tickets/"+created.ID, serviceKey, serviceSecret, nil)
	var found []ticketBody
	if status != http.StatusOK || json.Unmarshal(env.Data, &found) != nil || len(found) != 1 {
		t.Fatalf("get = %d %s", status, env.Data)
	}
	status, env = do(t, app, http.MethodGet, "/tickets/POST-missing", serviceKey, serviceSecret, nil)
	if status != http.StatusOK || string(env.Data) != "[]" {
		t.Fatalf("get missing = %d %s", status, env.Data)
	}

	status, env = do(t, app, http.MethodGet, "/tickets?status=approved&creator_id=1", serviceKey, serviceSecret, nil)
	if status != http.StatusOK || json.Unmarshal(env.Data, &found) != nil || len(found) != 1 {
		t.Fatalf("list = %d %s", status, env.Data)
	}
	status, env = do(t, app, http.MethodGet, "/tickets?created_from=yesterday", serviceKey, serviceSecret, nil)
	if status != http.StatusBadRequest || env.Error.Code != "INVALID_ARGUMENT" {
		t.Fatalf("bad filter = %d %+v", status, env.Error)
	}
}

func TestTicketValidationOverHTTP(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	tests := []struct {
		name   string
		body   fiber.Map
		status int
		code   string
	}{
		{"unknown action", fiber.Map{"action": "shout", "creator_id": 1}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"not whitelisted", fiber.Map{"action": "post_announcement", "creator_id": 2, "content": fiber.Map{"text": "x"}}, http.StatusForbidden, "PERMISSION_DENIED"},
		{"unknown creator", fiber.Map{"action": "post_announcement", "creator_id": 9, "content": fiber.Map{"text": "x"}}, http.StatusNotFound, "NOT_FOUND"},
		{"missing prior", fiber.Map{"action": "delete_announcement", "creator_id": 1, "prior_ticket_id": "POST-nope"}, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		status, env := do(t, app, http.MethodPost, "/tickets", serviceKey, serviceSecret, tt.body)
		if status != tt.status || env.Error == nil || env.Error.Code != tt.code {
			t.Fatalf("%s: status = %d err = %+v", tt.name, status, env.Error)
		}
	}
}

func TestAuthAndRoles(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	if status, env := do(t, app, http.MethodGet, "/tickets", "", "", nil); status != http.StatusUnauthorized || env.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("anonymous = %d %+v", status, env.Error)
	}
	if status, env := do(t, app, http.MethodGet, "/users", serviceKey, serviceSecret, nil); status != http.StatusForbidden || env.Error.Code != "PERMISSION_DENIED" {
		t.Fatalf("service key on admin route = %d %+v", status, env.Error)
	}
	if status, _ := do(t, app, http.MethodGet, "/users", adminKey, adminSecret, nil); status != http.StatusOK {
		t.Fatalf("admin users = %d", status)
	}

	status, env := do(t, app, http.MethodPost, "/auth/token", "", "", fiber.Map{"api_key": serviceKey, "api_secret": serviceSecret})
	if status != http.StatusOK {
		t.Fatalf("token = %d %+v", status, env.Error)
	}
	var token struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &token); err != nil || token.Token == "" {
		t.Fatalf("token body = %s", env.Data)
	}
	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	req.Header.Set("Authorization", "Bearer "+token.Token)
	resp, err := app.Test(req, -1)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("bearer request = %v, %v", resp, err)
	}
	resp.Body.Close()
}

func TestChatDirectoryOverHTTP(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	status, env := do(t, app, http.MethodPost, "/chats", serviceKey, serviceSecret, fiber.Map{
		"chat_id": 77, "name": "news-en", "type": "channel", "category": []string{"news"}, "language": []string{"en"},
	})
	if status != http.StatusCreated {
		t.Fatalf("create chat = %d %+v", status, env.Error)
	}
	if status, env = do(t, app, http.MethodPost, "/chats", serviceKey, serviceSecret, fiber.Map{"chat_id": 77, "name": "dup", "type": "channel"}); status != http.StatusConflict {
		t.Fatalf("duplicate chat = %d %+v", status, env.Error)
	}

	status, env = do(t, app, http.MethodPost, "/chats/resolve", serviceKey, serviceSecret, fiber.Map{"category": "news", "language": "en"})
	var dests []struct {
		ChatID int64 `json:"chat_id"`
	}
	if status != http.StatusOK || json.Unmarshal(env.Data, &dests) != nil || len(dests) != 1 || dests[0].ChatID != 77 {
		t.Fatalf("resolve = %d %s", status, env.Data)
	}

	if status, env = do(t, app, http.MethodPatch, "/chats/77", serviceKey, serviceSecret, fiber.Map{"active": false}); status != http.StatusOK {
		t.Fatalf("deactivate = %d %+v", status, env.Error)
	}
	status, env = do(t, app, http.MethodGet, "/chats?active=true", serviceKey, serviceSecret, nil)
	if status != http.StatusOK || string(env.Data) != "[]" {
		t.Fatalf("active chats = %d %s", status, env.Data)
	}
	if status, env = do(t, app, http.MethodGet, "/chats/abc", serviceKey, serviceSecret, nil); status != http.StatusBadRequest {
		t.Fatalf("bad id = %d %+v", status, env.Error)
	}
}
