// Package web serves the host tile view: an HTML page of host tiles, a small
// JSON API and a connect endpoint that runs the launch pipeline.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ssh-session-launcher/pkg/launch"
	"ssh-session-launcher/pkg/logging"
	"ssh-session-launcher/pkg/manager"
)

//go:embed templates/*
var templateFs embed.FS

var indexTmpl = template.Must(template.ParseFS(templateFs, "templates/index.html.tmpl"))

// Connector runs one launch attempt. *launch.Launcher satisfies it.
type Connector interface {
	Launch(ctx context.Context, h manager.HostProfile, opts launch.Options) (launch.Result, error)
}

// Server holds the current host list and serves it.
type Server struct {
	configPath string
	conn       Connector
	log        *zap.Logger

	mu    sync.RWMutex
	hosts []manager.HostProfile

	// launchMu serializes launches; the ledger assumes a single writer.
	launchMu sync.Mutex

	// cleanup runs once the server has shut down.
	cleanup func() error
}

// Option configures a Server.
type Option func(*Server)

// WithCleanup registers fn to run after Run's server has shut down, e.g. to
// remove secret files still waiting on their grace delay.
func WithCleanup(fn func() error) Option { return func(s *Server) { s.cleanup = fn } }

// NewServer returns a Server over cfg. configPath is re-read by Reload.
func NewServer(cfg *manager.Config, configPath string, conn Connector, log *zap.Logger, opts ...Option) *Server {
	s := &Server{configPath: configPath, conn: conn, log: logging.OrNop(log)}
	if cfg != nil {
		s.hosts = cfg.Hosts
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Hosts returns a snapshot of the host list.
func (s *Server) Hosts() []manager.HostProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]manager.HostProfile, len(s.hosts))
	copy(out, s.hosts)
	return out
}

// Reload re-reads the config file and swaps the host list. On error the
// previous list is kept.
func (s *Server) Reload() error {
	cfg, err := manager.LoadConfigFile(s.configPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.hosts = cfg.Hosts
	s.mu.Unlock()
	s.log.Info("host list reloaded", zap.String("path", s.configPath), zap.Int("hosts", len(cfg.Hosts)))
	return nil
}

// Router returns the HTTP routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.index)
	r.Route("/api", func(r chi.Router) {
		r.Get("/hosts", s.listHosts)
		r.Get("/tags", s.listTags)
		r.With(s.sameOrigin).Post("/hosts/{index}/connect", s.connect)
	})
	return r
}

// hostView is the JSON and template shape of a host. Index is the position in
// the full host list and stays stable under filtering.
type hostView struct {
	Index      int      `json:"index"`
	Name       string   `json:"name"`
	Hostname   string   `json:"hostname"`
	Username   string   `json:"username"`
	Port       int      `json:"port"`
	AuthMethod string   `json:"auth_method"`
	Tags       []string `json:"tags"`
}

// filtered applies the q (name/tag substring) and tag (exact) query params.
func (s *Server) filtered(r *http.Request) ([]hostView, int) {
	all := s.Hosts()
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	tag := strings.TrimSpace(r.URL.Query().Get("tag"))

	out := make([]hostView, 0, len(all))
	for i, h := range all {
		if q != "" && len(manager.FilterHosts([]manager.HostProfile{h}, q)) == 0 {
			continue
		}
		if tag != "" && len(manager.FilterByTag([]manager.HostProfile{h}, tag)) == 0 {
			continue
		}
		tags := h.Tags
		if tags == nil {
			tags = []string{}
		}
		out = append(out, hostView{
			Index:      i,
			Name:       h.Name,
			Hostname:   h.Hostname,
			Username:   h.Username,
			Port:       h.Port,
			AuthMethod: string(h.Auth),
			Tags:       tags,
		})
	}
	return out, len(all)
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	hosts, total := s.filtered(r)
	data := struct {
		Query string
		Tag   string
		Tags  []string
		Hosts []hostView
		Total int
	}{
		Query: r.URL.Query().Get("q"),
		Tag:   r.URL.Query().Get("tag"),
		Tags:  manager.UniqueTags(s.Hosts()),
		Hosts: hosts,
		Total: total,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, data); err != nil {
		s.log.Error("render index failed", zap.Error(err))
	}
}

func (s *Server) listHosts(w http.ResponseWriter, r *http.Request) {
	hosts, _ := s.filtered(r)
	writeJSON(w, s.log, http.StatusOK, hosts)
}

func (s *Server) listTags(w http.ResponseWriter, _ *http.Request) {
	tags := manager.UniqueTags(s.Hosts())
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, s.log, http.StatusOK, tags)
}

type connectResponse struct {
	Status   string   `json:"status"`
	Host     string   `json:"host"`
	Warnings []string `json:"warnings,omitempty"`
}

type errResponse struct {
	Error   string `json:"error"`
	Command string `json:"command,omitempty"`
}

// connect launches the host at {index}. No prompting happens here: a
// password host without a stored password gets an interactive ssh.
func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	hosts := s.Hosts()
	if err != nil || idx < 0 || idx >= len(hosts) {
		writeJSON(w, s.log, http.StatusNotFound, errResponse{Error: "host not found"})
		return
	}
	h := hosts[idx]

	s.launchMu.Lock()
	res, err := s.conn.Launch(r.Context(), h, launch.Options{Interactive: false})
	s.launchMu.Unlock()

	if err != nil {
		s.log.Warn("web launch failed", zap.String("host", h.Destination()), zap.Error(err))
		status := http.StatusInternalServerError
		body := errResponse{Error: err.Error()}
		var inv *launch.InvocationError
		switch {
		case errors.As(err, &inv):
			status = http.StatusBadGateway
			body.Command = inv.Command
		case errors.Is(err, manager.ErrUnsafeField):
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, s.log, status, body)
		return
	}

	writeJSON(w, s.log, http.StatusOK, connectResponse{
		Status:   "launched",
		Host:     h.Title(),
		Warnings: res.Warnings,
	})
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("json encode failed", zap.Error(err))
	}
}
