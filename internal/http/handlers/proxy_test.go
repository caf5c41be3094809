package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/dashboard/internal/apperr"
	"github.com/geocoder89/dashboard/internal/http/handlers"
	"github.com/geocoder89/dashboard/internal/proxy"
	"github.com/gin-gonic/gin"
)

type fakeProxy struct {
	weatherFn func(ctx context.Context, lat, lon string) (json.RawMessage, error)
	newsFn    func(ctx context.Context, feedURL string) (proxy.NewsItem, error)
	clothesFn func(ctx context.Context) (json.RawMessage, error)
}

func (f *fakeProxy) Weather(ctx context.Context, lat, lon string) (json.RawMessage, error) {
	return f.weatherFn(ctx, lat, lon)
}

func (f *fakeProxy) FirstNewsItem(ctx context.Context, feedURL string) (proxy.NewsItem, error) {
	return f.newsFn(ctx, feedURL)
}

func (f *fakeProxy) Clothes(ctx context.Context) (json.RawMessage, error) {
	return f.clothesFn(ctx)
}

func newProxyRouter(p handlers.ProxyClient) *gin.Engine {
	r := gin.New()
	h := handlers.NewProxyHandler(p)
	r.GET("/auth/weather", h.Weather)
	r.GET("/auth/news", h.News)
	r.GET("/auth/clothes", h.Clothes)
	return r
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestWeather_PassesQueryAndBody(t *testing.T) {
	p := &fakeProxy{
		weatherFn: func(_ context.Context, lat, lon string) (json.RawMessage, error) {
			if lat != "51.5" || lon != "-0.12" {
				t.Errorf("unexpected coordinates %q,%q", lat, lon)
			}
			return json.RawMessage(`{"main":{"temp":61.2}}`), nil
		},
	}

	w := get(newProxyRouter(p), "/auth/weather?lat=51.5&lon=-0.12")

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	if w.Body.String() != `{"main":{"temp":61.2}}` {
		t.Fatalf("upstream body not passed through: %s", w.Body.String())
	}
}

func TestWeather_MissingCoordinates(t *testing.T) {
	p := &fakeProxy{
		weatherFn: func(context.Context, string, string) (json.RawMessage, error) {
			return nil, apperr.Validation("Latitude and longitude are required", nil)
		},
	}

	w := get(newProxyRouter(p), "/auth/weather")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
	if msg := decodeError(t, w); msg != "Latitude and longitude are required" {
		t.Fatalf("unexpected error %q", msg)
	}
}

func TestNews_FirstItem(t *testing.T) {
	p := &fakeProxy{
		newsFn: func(_ context.Context, feedURL string) (proxy.NewsItem, error) {
			if feedURL != "https://example.com/rss" {
				t.Errorf("unexpected url %q", feedURL)
			}
			return proxy.NewsItem{Title: "Hello", Link: "https://example.com/1"}, nil
		},
	}

	w := get(newProxyRouter(p), "/auth/news?url=https://example.com/rss")

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}

	var item proxy.NewsItem
	if err := json.Unmarshal(w.Body.Bytes(), &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if item.Title != "Hello" {
		t.Fatalf("unexpected item %+v", item)
	}
}

func TestClothes_UpstreamFailure(t *testing.T) {
	p := &fakeProxy{
		clothesFn: func(context.Context) (json.RawMessage, error) {
			return nil, apperr.Dependency("Failed to fetch clothing data", errors.New("dial tcp: refused"))
		},
	}

	w := get(newProxyRouter(p), "/auth/clothes")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if w.Body.String() != `{"error":"Failed to fetch clothing data"}` {
		t.Fatalf("cause leaked or wrong body: %s", w.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	r := gin.New()

	down := handlers.NewHealthHandler(func(context.Context) error { return errors.New("down") })
	up := handlers.NewHealthHandler(nil)
	r.GET("/down", down.Readyz)
	r.GET("/up", up.Readyz)
	r.GET("/healthz", down.Healthz)

	if w := get(r, "/down"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing ping: got %d", w.Code)
	}
	if w := get(r, "/up"); w.Code != http.StatusOK {
		t.Fatalf("readyz without ping: got %d", w.Code)
	}
	if w := get(r, "/healthz"); w.Code != http.StatusOK {
		t.Fatalf("healthz: got %d", w.Code)
	}
}

func TestReadyz_EveryDependencyMustAnswer(t *testing.T) {
	r := gin.New()

	storeUp := func(context.Context) error { return nil }
	cacheDown := func(context.Context) error { return errors.New("redis: connection refused") }

	r.GET("/both", handlers.NewHealthHandler(storeUp, cacheDown).Readyz)
	r.GET("/store-only", handlers.NewHealthHandler(storeUp, nil).Readyz)

	if w := get(r, "/both"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with cache down: got %d", w.Code)
	}
	if w := get(r, "/store-only"); w.Code != http.StatusOK {
		t.Fatalf("readyz without cache: got %d", w.Code)
	}
}
