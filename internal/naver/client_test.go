package naver_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/petasbytes/chatloop/internal/naver"
)

func newServer(t *testing.T, h http.HandlerFunc) *naver.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := naver.NewClient("id-123", "secret-456")
	c.BaseURL = srv.URL
	c.HTTP = srv.Client()
	return c
}

func TestSearchNews_SendsCredentialsAndQuery(t *testing.T) {
	var gotPath, gotQuery, gotDisplay, gotSort, gotID, gotSecret string
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("query")
		gotDisplay = r.URL.Query().Get("display")
		gotSort = r.URL.Query().Get("sort")
		gotID = r.Header.Get("X-Naver-Client-Id")
		gotSecret = r.Header.Get("X-Naver-Client-Secret")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"lastBuildDate":"Mon, 01 Jan 2024 00:00:00 +0900","total":1,"start":1,"display":1,
			"items":[{"title":"<b>AI</b> news","originallink":"https://o","link":"https://l","description":"d","pubDate":"p"}]}`))
	})

	res, err := c.SearchNews(context.Background(), naver.Query{Text: "AI 뉴스", Display: 5, Sort: "date"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if gotPath != "/v1/search/news.json" {
		t.Errorf("path: %q", gotPath)
	}
	if gotQuery != "AI 뉴스" || gotDisplay != "5" || gotSort != "date" {
		t.Errorf("query params: query=%q display=%q sort=%q", gotQuery, gotDisplay, gotSort)
	}
	if gotID != "id-123" || gotSecret != "secret-456" {
		t.Errorf("credentials not sent: id=%q secret=%q", gotID, gotSecret)
	}
	if res.Total != 1 || len(res.Items) != 1 || res.Items[0].OriginalLink != "https://o" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSearchNews_Non200_ReturnsAPIError(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errorMessage":"Authentication failed","errorCode":"024"}`))
	})
	_, err := c.SearchNews(context.Background(), naver.Query{Text: "AI"})
	var apiErr *naver.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Code != "024" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestSearchNews_MissingCredentials(t *testing.T) {
	c := naver.NewClient("", "")
	if _, err := c.SearchNews(context.Background(), naver.Query{Text: "AI"}); !errors.Is(err, naver.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestSearchNews_EmptyQuery(t *testing.T) {
	called := false
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	if _, err := c.SearchNews(context.Background(), naver.Query{Text: "  "}); err == nil {
		t.Fatal("expected error for blank query")
	}
	if called {
		t.Fatal("blank query must not reach the API")
	}
}
