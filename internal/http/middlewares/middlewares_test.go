package middlewares_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/dashboard/internal/actorctx"
	"github.com/geocoder89/dashboard/internal/auth"
	"github.com/geocoder89/dashboard/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	claims *auth.Claims
	err    error
}

func (f fakeVerifier) VerifyAccessToken(string) (*auth.Claims, error) {
	return f.claims, f.err
}

func protectedRouter(v middlewares.TokenVerifier) *gin.Engine {
	r := gin.New()
	r.GET("/me", middlewares.NewAuthMiddleware(v).RequireAuth(), func(ctx *gin.Context) {
		id, _ := middlewares.UserIDFromContext(ctx)
		fromCtx, _ := actorctx.UserIDFrom(ctx.Request.Context())
		ctx.String(http.StatusOK, id+"|"+fromCtx)
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	ok := fakeVerifier{claims: &auth.Claims{UserID: "u-1"}}
	bad := fakeVerifier{err: errors.New("expired")}

	cases := []struct {
		name     string
		verifier middlewares.TokenVerifier
		header   string
		want     int
	}{
		{"missing header", ok, "", http.StatusUnauthorized},
		{"wrong scheme", ok, "Basic abc", http.StatusUnauthorized},
		{"empty token", ok, "Bearer   ", http.StatusUnauthorized},
		{"rejected token", bad, "Bearer abc", http.StatusUnauthorized},
		{"valid", ok, "Bearer abc", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			protectedRouter(tc.verifier).ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.want, w.Body.String())
			}
			if tc.want == http.StatusOK && w.Body.String() != "u-1|u-1" {
				t.Fatalf("user id not propagated: %s", w.Body.String())
			}
			if tc.want == http.StatusUnauthorized && !strings.HasPrefix(w.Body.String(), `{"error":"`) {
				t.Fatalf("unexpected error body: %s", w.Body.String())
			}
		})
	}
}

func TestRequireAuth_RealToken(t *testing.T) {
	m, err := auth.NewManager("test-secret", auth.TokenTTL)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	other, _ := auth.NewManager("other-secret", auth.TokenTTL)

	good, _ := m.GenerateAccessToken("u-42")
	forged, _ := other.GenerateAccessToken("u-42")

	r := protectedRouter(m)

	for token, want := range map[string]int{good: http.StatusOK, forged: http.StatusUnauthorized} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != want {
			t.Fatalf("got status %d, want %d", w.Code, want)
		}
	}
}

func TestRequireJSON(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.RequireJSON())
	r.POST("/x", func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })
	r.GET("/x", func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })

	cases := []struct {
		method, ct string
		want       int
	}{
		{http.MethodPost, "application/json", http.StatusNoContent},
		{http.MethodPost, "application/json; charset=utf-8", http.StatusNoContent},
		{http.MethodPost, "text/plain", http.StatusUnsupportedMediaType},
		{http.MethodPost, "", http.StatusUnsupportedMediaType},
		{http.MethodGet, "", http.StatusNoContent},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, "/x", strings.NewReader("{}"))
		if tc.ct != "" {
			req.Header.Set("Content-Type", tc.ct)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != tc.want {
			t.Fatalf("%s %q: got %d, want %d", tc.method, tc.ct, w.Code, tc.want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := middlewares.NewRateLimiter(2, time.Minute)

	r := gin.New()
	r.POST("/login", rl.RateLimiterMiddleware(middlewares.KeyByIP), func(ctx *gin.Context) {
		ctx.Status(http.StatusOK)
	})

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := send("10.0.0.1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, w.Code)
		}
	}

	w := send("10.0.0.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("got %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	if w := send("10.0.0.2"); w.Code != http.StatusOK {
		t.Fatalf("other clients must not be limited, got %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.CORSMiddleware([]string{"https://app.example"}))
	r.GET("/x", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("allowed origin not echoed: %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unknown origin must not be allowed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight: got %d, want 204", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.RequestID())
	r.GET("/x", func(ctx *gin.Context) {
		id, _ := ctx.Get(middlewares.CtxRequestID)
		ctx.String(http.StatusOK, id.(string))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Body.String() != "abc-123" || w.Header().Get("X-Request-Id") != "abc-123" {
		t.Fatalf("caller request id not kept: body=%s header=%s", w.Body.String(), w.Header().Get("X-Request-Id"))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Body.String() == "" {
		t.Fatalf("expected a generated request id")
	}
}
