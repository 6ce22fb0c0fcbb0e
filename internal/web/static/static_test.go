package static_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/boozedog/corsserve/internal/web/static"
)

const indexHTML = "<h1>hi</h1>"

// testSite creates a site directory with an index page, a module script, and
// a subdirectory without an index.
func testSite(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"index.html":                "<h1>hi</h1>",
		"app.js":                    "import { x } from './modules/x.js';\n",
		"modules/x.js":              "export const x = 1;\n",
		"modules/ui/index.html":     "<p>ui</p>",
		"assets/presets/deep.json":  `{"name":"Deep Default"}`,
		"assets/presets/other.json": `{}`,
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec
}

func TestServeIndexFile(t *testing.T) {
	h := static.New(testSite(t))

	for _, path := range []string{"/", "/index.html"} {
		rec := get(t, h, path)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: status = %d, want 200", path, rec.Code)
		}
		if rec.Body.String() != indexHTML {
			t.Errorf("GET %s: body = %q, want %q", path, rec.Body.String(), indexHTML)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("GET %s: Content-Type = %q, want text/html", path, ct)
		}
	}
}

func TestServeNestedIndexFile(t *testing.T) {
	h := static.New(testSite(t))

	rec := get(t, h, "/modules/ui/index.html")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "<p>ui</p>" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestServeScript(t *testing.T) {
	h := static.New(testSite(t))

	rec := get(t, h, "/modules/x.js")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "export const x = 1;\n" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "javascript") {
		t.Errorf("Content-Type = %q, want javascript", ct)
	}
}

func TestMissingFile(t *testing.T) {
	h := static.New(testSite(t))

	for _, path := range []string{"/does-not-exist.js", "/nope/index.html", "/assets/index.html"} {
		if rec := get(t, h, path); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s: status = %d, want 404", path, rec.Code)
		}
	}
}

func TestDirectoryListing(t *testing.T) {
	h := static.New(testSite(t))

	rec := get(t, h, "/assets/presets/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"deep.json", "other.json"} {
		if !strings.Contains(body, name) {
			t.Errorf("listing missing %s: %q", name, body)
		}
	}
}

func TestDirectoryRedirect(t *testing.T) {
	h := static.New(testSite(t))

	rec := get(t, h, "/assets")
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "assets/" {
		t.Errorf("Location = %q, want assets/", loc)
	}
}

func TestPathTraversal(t *testing.T) {
	parent := t.TempDir()
	site := filepath.Join(parent, "site")
	if err := os.MkdirAll(site, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("secret"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	h := static.New(site)
	req := httptest.NewRequest("GET", "/", nil)
	req.URL.Path = "/../secret.txt"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), "secret") {
		t.Fatalf("served file outside the site root: %d %q", rec.Code, rec.Body.String())
	}
}
