package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smonier/importContentFromJson/internal/repository"
)

func newClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(repository.Config{BaseURL: srv.URL, BearerToken: "secret"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(repository.Config{}); err == nil {
		t.Fatalf("New without base_url should fail")
	}
}

func TestCheckPath(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/nodes" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}
		switch r.URL.Query().Get("path") {
		case "/sites/digitall/contents/news":
			io.WriteString(w, `{"exists":true,"uuid":"node-1"}`)
		default:
			http.NotFound(w, r)
		}
	}))

	info, err := c.CheckPath(context.Background(), "/sites/digitall/contents/news")
	if err != nil {
		t.Fatalf("CheckPath: %v", err)
	}
	if !info.Exists || info.UUID != "node-1" {
		t.Fatalf("CheckPath = %+v", info)
	}

	// A remote 404 surfaces as ErrNotFound, which NodeExists normalizes.
	info, err = repository.NodeExists(context.Background(), c, "/sites/digitall/contents/missing")
	if err != nil {
		t.Fatalf("NodeExists: %v", err)
	}
	if info.Exists {
		t.Fatalf("missing path reported as existing")
	}
}

func TestCreateContentSendsProperties(t *testing.T) {
	var body string
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/contents" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		io.WriteString(w, `{"uuid":"node-2"}`)
	}))

	id, err := c.CreateContent(context.Background(), "/sites/digitall/contents/news", "hello", "jnt:news",
		[]repository.PropertyInput{{Name: "jcr:title", Value: "Hello", Language: "en"}})
	if err != nil {
		t.Fatalf("CreateContent: %v", err)
	}
	if id != "node-2" {
		t.Fatalf("uuid = %s", id)
	}
	for _, want := range []string{`"nodeType":"jnt:news"`, `"jcr:title"`, `"language":"en"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("request body %s missing %s", body, want)
		}
	}
}

func TestCheckImageAbsent(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	info, err := c.CheckImage(context.Background(), "/sites/digitall/files/banner.jpg")
	if err != nil {
		t.Fatalf("CheckImage: %v", err)
	}
	if info != nil {
		t.Fatalf("CheckImage = %+v, want nil", info)
	}
}

func TestUploadFile(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/files" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("content type = %q", ct)
		}
		q := r.URL.Query()
		if q.Get("name") != "banner.jpg" || q.Get("path") != "/sites/digitall/files/news" {
			t.Errorf("query = %v", q)
		}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) != 2 {
			t.Errorf("body = %v", raw)
		}
		io.WriteString(w, `{"uuid":"file-1"}`)
	}))

	id, err := c.UploadFile(context.Background(), "banner.jpg", "/sites/digitall/files/news", "image/jpeg", []byte{0xff, 0xd8})
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if id != "file-1" {
		t.Fatalf("uuid = %s", id)
	}
}

func TestErrorIncludesResponseBody(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":"token expired"}`)
	}))

	err := c.AddTags(context.Background(), "node-1", []string{"go"})
	if err == nil {
		t.Fatalf("AddTags should fail on 403")
	}
	if !strings.Contains(err.Error(), "status 403") || !strings.Contains(err.Error(), "token expired") {
		t.Fatalf("error = %v", err)
	}
}

func TestCategoryTree(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/categories" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `[{"name":"sports","uuid":"cat-1","children":[{"name":"football","uuid":"cat-2"}]}]`)
	}))

	tree, err := c.CategoryTree(context.Background())
	if err != nil {
		t.Fatalf("CategoryTree: %v", err)
	}
	if len(tree) != 1 || tree[0].UUID != "cat-1" {
		t.Fatalf("tree = %+v", tree)
	}
	if len(tree[0].Children) != 1 || tree[0].Children[0].Name != "football" {
		t.Fatalf("children = %+v", tree[0].Children)
	}
}
