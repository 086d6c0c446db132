package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vaultpin/internal/config"
	"vaultpin/internal/gateway"
	"vaultpin/internal/resolve"
	"vaultpin/internal/vault"
)

func testServer(t *testing.T) (*Server, *vault.Vault) {
	t.Helper()
	cfg := &config.Config{Gateway: "gw.example", Mode: config.ModePublic}
	v := vault.NewInMemory()
	resolver := resolve.New(gateway.NewBuilder(cfg, nil), nil)
	return NewServer(cfg, v, resolver), v
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHomeListsNotes(t *testing.T) {
	s, v := testServer(t)
	v.Write("a.md", []byte("# A"))
	v.Write("sub/b.md", []byte("# B"))

	rec := get(t, s, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "a.md") || !strings.Contains(body, "sub/b.md") {
		t.Fatalf("note list incomplete:\n%s", body)
	}
}

func TestNoteRendersAndResolves(t *testing.T) {
	s, v := testServer(t)
	v.Write("note.md", []byte("# Title\n\n![cat](ipfs://bafyabc)\n"))

	rec := get(t, s, "/notes/note.md")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h1>Title</h1>") {
		t.Fatalf("markdown not rendered:\n%s", body)
	}
	if !strings.Contains(body, `src="https://gw.example/ipfs/bafyabc"`) {
		t.Fatalf("ipfs ref not resolved:\n%s", body)
	}
	if strings.Contains(body, `src="ipfs://`) {
		t.Fatalf("raw ipfs src leaked:\n%s", body)
	}
}

func TestNoteNotFound(t *testing.T) {
	s, _ := testServer(t)
	if rec := get(t, s, "/notes/missing.md"); rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestNoteRejectsEscapingPath(t *testing.T) {
	s, v := testServer(t)
	v.Write("note.md", []byte("x"))
	req := httptest.NewRequest(http.MethodGet, "/notes/x", nil)
	req.URL.Path = "/notes/../note.md"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code == http.StatusOK {
		t.Fatalf("path escape served: %d", rec.Code)
	}
}

func TestUnknownPath(t *testing.T) {
	s, _ := testServer(t)
	if rec := get(t, s, "/none"); rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
}
