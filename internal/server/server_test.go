package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smonier/importContentFromJson/internal/repository/repositorytest"
	"github.com/smonier/importContentFromJson/internal/schema"
)

func newTestServer(t *testing.T) (*Server, *gin.Engine, *repositorytest.Fake) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := repositorytest.New()
	fake.Defs["jnt:news"] = []schema.PropertyDefinition{
		{Name: "jcr:title", DisplayName: "Title", RequiredType: schema.TypeString, Internationalized: true},
		{Name: "body", DisplayName: "Body", RequiredType: schema.TypeString},
	}
	srv := New(fake, nil)
	return srv, srv.Router(), fake
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestWizardFlow(t *testing.T) {
	_, r, fake := newTestServer(t)

	// Create a session.
	w := doJSON(t, r, http.MethodPost, "/api/sessions", `{"siteKey":"digitall","language":"en"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["id"].(string)
	require.NotEmpty(t, id)

	// Upload a JSON source.
	src := `[{"jcr:title":"Hello World","body":"First"},{"jcr:title":"Second Post","body":"More"}]`
	w = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/source", src)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	up := decode(t, w)
	assert.Equal(t, float64(2), up["records"])
	assert.Len(t, up["sample"], 2)

	// Pick the content type; exact-name fields are auto-seeded.
	w = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/content-type", `{"name":"jnt:news"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ct := decode(t, w)
	assert.Equal(t, "mapping_ready", ct["state"])
	mappings := ct["mappings"].(map[string]any)
	assert.Equal(t, "jcr:title", mappings["jcr:title"])
	assert.Equal(t, "body", mappings["body"])

	// Generate the preview.
	w = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/preview", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pv := decode(t, w)
	assert.Equal(t, "preview_generated", pv["state"])
	assert.Len(t, pv["entries"], 2)

	// Run the import.
	w = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/import", `{"pathSuffix":"news","override":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode(t, w)
	assert.Equal(t, "completed", res["state"])

	node := fake.Node("/sites/digitall/contents/news/hello_world")
	require.NotNil(t, node)
	assert.Equal(t, "jnt:news", node.Type)

	// The report stays downloadable afterwards.
	w = doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	rep := decode(t, w)
	summary := rep["summary"].(map[string]any)
	nodes := summary["nodes"].(map[string]any)
	assert.Equal(t, float64(2), nodes["created"])
}

func TestUploadCSVWithSeparator(t *testing.T) {
	_, r, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/sessions", `{"siteKey":"digitall","language":"en"}`)
	id := decode(t, w)["id"].(string)

	csv := "title;body\nHello;First\n"
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/source?format=csv&separator=%3B", strings.NewReader(csv))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	up := decode(t, w)
	assert.Equal(t, []any{"title", "body"}, up["fields"])
}

func TestUploadHTMLListing(t *testing.T) {
	_, r, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/sessions", `{"siteKey":"digitall","language":"en"}`)
	id := decode(t, w)["id"].(string)

	page := `<div class="item"><h2>Hello</h2><a href="/news/hello">more</a></div>` +
		`<div class="item"><h2>Second</h2><a href="/news/second">more</a></div>`
	url := "/api/sessions/" + id + "/source?format=html&recordSelector=div.item&field=title=h2&field=link=a@href"
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(page))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	up := decode(t, w)
	assert.Equal(t, float64(2), up["records"])
	sample := up["sample"].([]any)
	first := sample[0].(map[string]any)
	assert.Equal(t, "Hello", first["title"])
	assert.Equal(t, "/news/hello", first["link"])
}

func TestUploadHTMLListingRejectsBadFieldPair(t *testing.T) {
	_, r, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/sessions", `{"siteKey":"digitall","language":"en"}`)
	id := decode(t, w)["id"].(string)

	url := "/api/sessions/" + id + "/source?format=html&recordSelector=div.item&field=title"
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader("<div/>"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadRejectsUnknownFormat(t *testing.T) {
	_, r, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/sessions", `{"siteKey":"digitall","language":"en"}`)
	id := decode(t, w)["id"].(string)

	w = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/source?format=xml", "<root/>")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionNotFound(t *testing.T) {
	_, r, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodGet, "/api/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateSessionValidation(t *testing.T) {
	_, r, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/sessions", `{"siteKey":"digitall"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreviewDownloadCSVQuotesEmbeddedQuotes(t *testing.T) {
	_, r, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/sessions", `{"siteKey":"digitall","language":"en"}`)
	id := decode(t, w)["id"].(string)

	src := `[{"jcr:title":"Say \"hi\"","body":"First"}]`
	w = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/source", src)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/content-type", `{"name":"jnt:news"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/preview", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/preview/download?format=csv&separator=%3B", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), `"Say ""hi"""`)
	assert.Contains(t, w.Body.String(), ";")

	// Download before preview generation conflicts.
	w2 := doJSON(t, r, http.MethodPost, "/api/sessions", `{"siteKey":"digitall","language":"en"}`)
	other := decode(t, w2)["id"].(string)
	w2 = doJSON(t, r, http.MethodGet, "/api/sessions/"+other+"/preview/download", "")
	assert.Equal(t, http.StatusConflict, w2.Code)
}

func TestListContentTypesSorted(t *testing.T) {
	_, r, fake := newTestServer(t)
	fake.Types = []schema.ContentType{
		{Name: "jnt:zebra", DisplayName: "zebra"},
		{Name: "jnt:article", DisplayName: "Article"},
		{Name: "jnt:news", DisplayName: "news"},
	}

	w := doJSON(t, r, http.MethodGet, "/api/sites/digitall/content-types", "")
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		ContentTypes []schema.ContentType `json:"contentTypes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.ContentTypes, 3)
	assert.Equal(t, "Article", out.ContentTypes[0].DisplayName)
	assert.Equal(t, "news", out.ContentTypes[1].DisplayName)
	assert.Equal(t, "zebra", out.ContentTypes[2].DisplayName)
}

func TestImageProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("png-bytes"))
		case "/big.png":
			w.Write(make([]byte, 2048))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer upstream.Close()

	srv, r, _ := newTestServer(t)
	srv.proxyMax = 1024

	get := func(target string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		return w
	}

	w := get("/image-proxy?url=" + upstream.URL + "/ok.png")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", w.Body.String())

	assert.Equal(t, http.StatusRequestEntityTooLarge, get("/image-proxy?url="+upstream.URL+"/big.png").Code)
	assert.Equal(t, http.StatusBadGateway, get("/image-proxy?url="+upstream.URL+"/boom").Code)
	assert.Equal(t, http.StatusBadRequest, get("/image-proxy?url=ftp://example.com/x.png").Code)
	assert.Equal(t, http.StatusBadRequest, get("/image-proxy").Code)
}
