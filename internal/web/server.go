// Package web serves a read-only view of the vault. Rendered HTML passes
// through the live resolver so ipfs:// references load from the gateway.
package web

import (
	"net/http"
	"strings"

	"github.com/yuin/goldmark"

	"vaultpin/internal/config"
	"vaultpin/internal/resolve"
	"vaultpin/internal/vault"
)

var mdRenderer = goldmark.New()

type Server struct {
	cfg      *config.Config
	vault    *vault.Vault
	resolver *resolve.Resolver
	mux      *http.ServeMux
}

func NewServer(cfg *config.Config, v *vault.Vault, resolver *resolve.Resolver) *Server {
	s := &Server{
		cfg:      cfg,
		vault:    v,
		resolver: resolver,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleHome)
	s.mux.HandleFunc("/notes/", s.handleNote)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	notes, err := s.vault.Notes("")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	renderList(w, notes)
}

func (s *Server) handleNote(w http.ResponseWriter, r *http.Request) {
	notePath := strings.TrimPrefix(r.URL.Path, "/notes/")
	notePath = strings.TrimSuffix(notePath, "/")
	if notePath == "" {
		http.NotFound(w, r)
		return
	}
	if _, err := vault.NormalizePath(notePath); err != nil {
		http.Error(w, "bad path", http.StatusBadRequest)
		return
	}
	content, err := s.vault.Read(notePath)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	var b strings.Builder
	if err := mdRenderer.Convert(content, &b); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	html := s.resolver.RewriteHTML(r.Context(), b.String())
	renderNote(w, notePath, html)
}
