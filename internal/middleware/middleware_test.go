package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/soundrent-backoffice/internal/config"
	"github.com/iliyamo/soundrent-backoffice/internal/utils"
)

const secret = "test-secret"

func serve(t *testing.T, e *echo.Echo, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRole(t *testing.T) {
	e := echo.New()
	g := e.Group("/v1", JWTAuth(secret), RequireRole("ADMIN"))
	g.GET("/ping", func(c echo.Context) error {
		id, ok := UserID(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, echo.Map{"id": id, "role": Role(c)})
	})

	admin, err := utils.NewAccessToken(secret, 7, "ADMIN", 5)
	if err != nil {
		t.Fatal(err)
	}
	staff, _ := utils.NewAccessToken(secret, 8, "STAFF", 5)
	forged, _ := utils.NewAccessToken("other", 7, "ADMIN", 5)

	tests := []struct {
		name string
		auth string
		want int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"bad signature", "Bearer " + forged.Token, http.StatusUnauthorized},
		{"wrong role", "Bearer " + staff.Token, http.StatusForbidden},
		{"admin", "Bearer " + admin.Token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := serve(t, e, tt.auth); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	e := echo.New()
	e.Use(RequestLogger(zapNop()))
	e.GET("/v1/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	rec := serve(t, e, "")
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Error("no request id on the response")
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if got := rec.Header().Get(echo.HeaderXRequestID); got != "abc" {
		t.Errorf("request id = %q, want abc", got)
	}
}

func TestCacheKeyStrategies(t *testing.T) {
	e := echo.New()
	key := func(strategy, target string) string {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetPath("/v1/reservations")
		return cacheKey(config.CacheConfig{Prefix: "cache", KeyStrategy: strategy}, c)
	}
	if key("route_query", "/v1/reservations?statut=a") == key("route_query", "/v1/reservations?statut=b") {
		t.Error("route_query ignores the query string")
	}
	if key("route", "/v1/reservations?statut=a") != key("route", "/v1/reservations?statut=b") {
		t.Error("route depends on the query string")
	}
	if k := key("", "/v1/reservations"); len(k) != len("cache:")+40 {
		t.Errorf("key = %q", k)
	}
}

func TestCacheEntry(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodeEntry(http.StatusOK, hdr, []byte(`{"ok":true}`))
	if err != nil {
		t.Fatal(err)
	}
	status, got, body, ok := decodeEntry(bs)
	if !ok || status != http.StatusOK || got.Get("Content-Type") != "application/json" || string(body) != `{"ok":true}` {
		t.Errorf("decodeEntry() = %d %v %q %v", status, got, body, ok)
	}
	if _, _, _, ok := decodeEntry(bs[:9]); ok {
		t.Error("truncated entry decoded")
	}
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("def"))
	if cw.buf.String() != "abcd" || !cw.truncated() || rec.Body.String() != "abcdef" {
		t.Errorf("buf=%q truncated=%v sent=%q", cw.buf.String(), cw.truncated(), rec.Body.String())
	}
}

func TestParseBucket(t *testing.T) {
	res, err := parseBucket([]any{int64(0), int64(0), int64(1500)})
	if err != nil {
		t.Fatal(err)
	}
	if res.allowed || res.retry.Milliseconds() != 1500 {
		t.Errorf("parseBucket() = %+v", res)
	}
	if _, err := parseBucket("nope"); err == nil {
		t.Error("parseBucket() accepted a string")
	}
}

func zapNop() *zap.Logger { return zap.NewNop() }
