package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/soundrent-backoffice/internal/config"
	"github.com/iliyamo/soundrent-backoffice/internal/events"
	"github.com/iliyamo/soundrent-backoffice/internal/middleware"
	"github.com/iliyamo/soundrent-backoffice/internal/model"
	"github.com/iliyamo/soundrent-backoffice/internal/repository"
	"github.com/iliyamo/soundrent-backoffice/internal/service"
	"github.com/iliyamo/soundrent-backoffice/internal/utils"
)

type memUsers struct {
	mu    sync.Mutex
	users []model.User
}

func (m *memUsers) Create(_ context.Context, email, password, role string, cost int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	id := uint64(len(m.users) + 1)
	m.users = append(m.users, model.User{ID: id, Email: email, PasswordHash: hash, Role: role, IsActive: true})
	return id, nil
}

func (m *memUsers) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == 0 || int(id) > len(m.users) {
		return model.User{}, repository.ErrNotFound
	}
	return m.users[id-1], nil
}

type memTokens struct {
	mu      sync.Mutex
	owner   map[string]uint64
	revoked map[string]bool
}

func newMemTokens() *memTokens {
	return &memTokens{owner: map[string]uint64{}, revoked: map[string]bool{}}
}

func (m *memTokens) StoreRefresh(_ context.Context, uid uint64, hash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owner[hash] = uid
	return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid, ok := m.owner[hash]
	if !ok || m.revoked[hash] {
		return 0, repository.ErrNotFound
	}
	return uid, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[hash] = true
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, uid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, owner := range m.owner {
		if owner == uid {
			m.revoked[h] = true
		}
	}
	return nil
}

const testSecret = "handler-test-secret"

func newAuthServer() (*echo.Echo, *memTokens) {
	tokens := newMemTokens()
	h := NewAuthHandler(config.Config{JWTSecret: testSecret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}, &memUsers{}, tokens, zap.NewNop())
	e := echo.New()
	g := e.Group("/v1/auth")
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", h.Logout)
	e.GET("/v1/me", h.Me, middleware.JWTAuth(testSecret))
	return e, tokens
}

func do(e *echo.Echo, method, target, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeAuth(t *testing.T, rec *httptest.ResponseRecorder) authResp {
	t.Helper()
	var out authResp
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func TestRegisterFirstUserIsAdmin(t *testing.T) {
	e, _ := newAuthServer()

	rec := do(e, http.MethodPost, "/v1/auth/register", `{"email":"Boss@SoundRent.fr","password":"secret123","role":"STAFF"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("first register = %d %s", rec.Code, rec.Body.String())
	}
	admin := decodeAuth(t, rec)
	if admin.User.Role != model.RoleAdmin || admin.User.Email != "boss@soundrent.fr" {
		t.Errorf("first user = %+v", admin.User)
	}

	rec = do(e, http.MethodPost, "/v1/auth/register", `{"email":"b@soundrent.fr","password":"secret123"}`, "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("anonymous second register = %d, want 403", rec.Code)
	}

	rec = do(e, http.MethodPost, "/v1/auth/register", `{"email":"b@soundrent.fr","password":"secret123"}`, admin.Access.Token)
	if rec.Code != http.StatusCreated || decodeAuth(t, rec).User.Role != model.RoleStaff {
		t.Errorf("admin register = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodPost, "/v1/auth/register", `{"email":"b@soundrent.fr","password":"secret123"}`, admin.Access.Token)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register = %d, want 409", rec.Code)
	}

	rec = do(e, http.MethodPost, "/v1/auth/register", `{"email":"c@soundrent.fr","password":"short"}`, admin.Access.Token)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("weak password register = %d, want 400", rec.Code)
	}
}

func TestLoginRefreshLogout(t *testing.T) {
	e, _ := newAuthServer()
	do(e, http.MethodPost, "/v1/auth/register", `{"email":"a@soundrent.fr","password":"secret123"}`, "")

	if rec := do(e, http.MethodPost, "/v1/auth/login", `{"email":"a@soundrent.fr","password":"wrong-pass"}`, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password login = %d", rec.Code)
	}
	rec := do(e, http.MethodPost, "/v1/auth/login", `{"email":"a@soundrent.fr","password":"secret123"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d %s", rec.Code, rec.Body.String())
	}
	session := decodeAuth(t, rec)

	if rec := do(e, http.MethodGet, "/v1/me", "", session.Access.Token); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "a@soundrent.fr") {
		t.Errorf("me = %d %s", rec.Code, rec.Body.String())
	}

	body := fmt.Sprintf(`{"refresh_token":%q}`, session.Refresh.Token)
	rec = do(e, http.MethodPost, "/v1/auth/refresh", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh = %d %s", rec.Code, rec.Body.String())
	}
	rotated := decodeAuth(t, rec)
	if rotated.Refresh.Token == session.Refresh.Token {
		t.Error("refresh token was not rotated")
	}
	if rec := do(e, http.MethodPost, "/v1/auth/refresh", body, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("reused refresh = %d, want 401", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/v1/auth/refresh", `{}`, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("empty refresh = %d, want 400", rec.Code)
	}

	if rec := do(e, http.MethodPost, "/v1/auth/logout", "", rotated.Access.Token); rec.Code != http.StatusNoContent {
		t.Errorf("logout = %d", rec.Code)
	}
	body = fmt.Sprintf(`{"refresh_token":%q}`, rotated.Refresh.Token)
	if rec := do(e, http.MethodPost, "/v1/auth/refresh", body, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout = %d, want 401", rec.Code)
	}
}

func TestFailMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &service.ValidationError{Fields: []service.FieldError{{Field: "client_id", Message: "obligatoire"}}}, http.StatusUnprocessableEntity},
		{"not found", fmt.Errorf("load: %w", repository.ErrNotFound), http.StatusNotFound},
		{"conflict", repository.ErrConflict, http.StatusConflict},
		{"persistence", &service.PersistenceError{Op: "insert reservation", Err: errors.New("deadlock")}, http.StatusInternalServerError},
		{"http", echo.NewHTTPError(http.StatusBadRequest, "invalid id"), http.StatusBadRequest},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			if err := fail(c, zap.NewNop(), tt.err); err != nil {
				t.Fatal(err)
			}
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestQuoteEndpoint(t *testing.T) {
	h := &ReservationHandler{Log: zap.NewNop(), Now: func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }}
	e := echo.New()
	e.POST("/v1/reservations/quote", h.Quote)

	rec := do(e, http.MethodPost, "/v1/reservations/quote", `{"prix_total_ttc":"500","ville_zone":"Paris","technicien_necessaire":true,"date_event":"2025-06-20"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("quote = %d %s", rec.Code, rec.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if _, ok := out["deadline_near"]; !ok {
		t.Errorf("quote response %s lacks deadline_near", rec.Body.String())
	}
}

type memClients struct{ rows map[uint64]*model.Client }

func (m *memClients) Get(_ context.Context, id uint64) (*model.Client, error) {
	c, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memClients) List(context.Context, string, int, int) ([]model.Client, error) { return nil, nil }

func (m *memClients) Create(_ context.Context, c *model.Client) error {
	c.ID = uint64(len(m.rows) + 1)
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memClients) Update(_ context.Context, c *model.Client) error {
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func TestClientEndpoints(t *testing.T) {
	h := NewCatalogHandler(&memClients{rows: map[uint64]*model.Client{}}, nil, zap.NewNop())
	e := echo.New()
	e.GET("/v1/clients", h.ListClients)
	e.POST("/v1/clients", h.CreateClient)
	e.PUT("/v1/clients/:id", h.UpdateClient)
	e.GET("/v1/clients/:id", h.GetClient)

	if rec := do(e, http.MethodGet, "/v1/clients", "", ""); rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty list = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodPost, "/v1/clients", `{"email":"x"}`, ""); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid create = %d", rec.Code)
	}
	rec := do(e, http.MethodPost, "/v1/clients", `{"prenom":" Camille ","nom":"Durand","email":"C@X.FR"}`, "")
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"email":"c@x.fr"`) {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodPut, "/v1/clients/1", `{"prenom":"Camille","nom":"Martin"}`, ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Martin") {
		t.Errorf("update = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodGet, "/v1/clients/9", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing client = %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/v1/clients/abc", "", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d", rec.Code)
	}
}

func TestEventStream(t *testing.T) {
	bus := events.NewBus(nil)
	h := &EventsHandler{Bus: bus, Heartbeat: time.Hour, Log: zap.NewNop()}
	e := echo.New()
	e.GET("/v1/events/stream", h.Stream)
	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	rd := bufio.NewReader(resp.Body)
	if line, _ := rd.ReadString('\n'); line != "retry: 3000\n" {
		t.Fatalf("first line = %q", line)
	}
	bus.Publish(context.Background(), events.Event{Name: events.PaymentUpdated, ReservationID: 4})

	var got []string
	for len(got) < 3 {
		line, err := rd.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if line = strings.TrimSpace(line); line != "" {
			got = append(got, line)
		}
	}
	if got[1] != "event: reservation-payment-updated" || !strings.Contains(got[2], `"reservation_id":4`) {
		t.Errorf("message = %q", got)
	}
}
