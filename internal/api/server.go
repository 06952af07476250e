package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"raidguard/internal/config"
	"raidguard/internal/journal"
	"raidguard/internal/model"
	"raidguard/internal/stats"
)

// Guard is the engine surface the API needs.
type Guard interface {
	IsBypassed(actor uuid.UUID) bool
	TryReserve(actor uuid.UUID, bypass bool, source string) model.Decision
	Remaining(actor uuid.UUID) time.Duration
	Clear(actor uuid.UUID)
	ActiveCount() int
	ActiveCooldowns() map[uuid.UUID]time.Duration
	Flush(ctx context.Context) error
	UpdateConfig(cfg *config.Config)
	Started() time.Time
}

type Server struct {
	cfg     *config.Manager
	guard   Guard
	journal *journal.Store
	stats   *stats.Store
	logger  *slog.Logger
	version string
}

type statusResponse struct {
	Status          string         `json:"status"`
	Time            string         `json:"time"`
	Version         string         `json:"version"`
	UptimeSeconds   int64          `json:"uptime_seconds"`
	ConfigPath      string         `json:"config_path"`
	ActiveCooldowns int            `json:"active_cooldowns"`
	CooldownSeconds int            `json:"cooldown_seconds"`
	CleanupMinutes  int            `json:"cleanup_interval_minutes"`
	StorageDriver   string         `json:"storage_driver"`
	Stats           stats.Snapshot `json:"stats"`
}

func Start(ctx context.Context, cfg *config.Manager, guard Guard, journalStore *journal.Store, statsStore *stats.Store, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:     cfg,
		guard:   guard,
		journal: journalStore,
		stats:   statsStore,
		logger:  logger,
		version: version,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/attempt", server.handleAttempt)
	mux.HandleFunc("/cooldowns", server.handleCooldowns)
	mux.HandleFunc("/cooldowns/", server.handleCooldown)
	mux.HandleFunc("/decisions", server.handleDecisions)
	mux.HandleFunc("/admin/reload", server.handleReload)
	mux.HandleFunc("/admin/flush", server.handleFlush)
	mux.HandleFunc("/admin/clear", server.handleClear)

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	now := time.Now().UTC()
	resp := statusResponse{
		Status:          "ok",
		Time:            now.Format(time.RFC3339Nano),
		Version:         s.version,
		UptimeSeconds:   int64(now.Sub(s.guard.Started()).Seconds()),
		ConfigPath:      s.cfg.Path(),
		ActiveCooldowns: s.guard.ActiveCount(),
		CooldownSeconds: cfg.Cooldown.DurationSeconds,
		CleanupMinutes:  cfg.Cleanup.IntervalMinutes,
		StorageDriver:   cfg.Storage.Driver,
	}
	if s.stats != nil {
		resp.Stats = s.stats.Get()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAttempt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var req struct {
		ActorID string `json:"actor_id"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	actor, err := uuid.Parse(strings.TrimSpace(req.ActorID))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid actor_id"})
		return
	}
	bypass := s.guard.IsBypassed(actor)
	decision := s.guard.TryReserve(actor, bypass, "api")
	writeJSON(w, http.StatusOK, map[string]any{
		"actor_id":          actor,
		"allowed":           decision.Allowed(),
		"verdict":           decision.Verdict,
		"remaining_seconds": int64(decision.Remaining.Seconds()),
		"expires_at":        expiresAtField(decision),
	})
}

func (s *Server) handleCooldowns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	active := s.guard.ActiveCooldowns()
	out := make(map[string]int64, len(active))
	for actor, remaining := range active {
		out[actor.String()] = int64(remaining.Seconds())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cooldowns": out,
		"count":     len(out),
	})
}

func (s *Server) handleCooldown(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/cooldowns/")
	actor, err := uuid.Parse(strings.TrimSpace(path))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid actor id"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		remaining := s.guard.Remaining(actor)
		writeJSON(w, http.StatusOK, map[string]any{
			"actor_id":          actor,
			"available":         remaining <= 0,
			"remaining_seconds": int64(remaining.Seconds()),
		})
	case http.MethodDelete:
		s.guard.Clear(actor)
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "actor_id": actor})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.journal == nil {
		writeJSON(w, http.StatusOK, map[string]any{"decisions": []model.Decision{}, "count": 0})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	sinceStr := r.URL.Query().Get("since")
	var list []model.Decision
	if sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.journal.Since(ts)
	} else {
		list = s.journal.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"decisions": list,
		"count":     len(list),
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg, err := s.cfg.Reload()
	if err != nil {
		// Old config stays in effect.
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	s.guard.UpdateConfig(cfg)
	if s.logger != nil {
		s.logger.Info("configuration reloaded", "path", s.cfg.Path())
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := s.guard.Flush(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	var req struct {
		Target string `json:"target"`
	}
	_ = json.Unmarshal(body, &req)
	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = "all"
	}
	switch target {
	case "all":
		if s.journal != nil {
			s.journal.Clear()
		}
		if s.stats != nil {
			s.stats.Clear()
		}
	case "decisions":
		if s.journal != nil {
			s.journal.Clear()
		}
	case "stats":
		if s.stats != nil {
			s.stats.Clear()
		}
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func expiresAtField(d model.Decision) string {
	if d.ExpiresAt.IsZero() {
		return ""
	}
	return d.ExpiresAt.UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
