package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	meowstatus "github.com/meowhuan/meowstatus"
	"github.com/meowhuan/meowstatus/internal/storage"
)

// Config 状态后端的依赖与凭证。
type Config struct {
	Store   *storage.Store
	Token   string
	Version string
}

// Server serves the status backend API: heartbeat ingestion, the status feed,
// schedule/blog content, and visitor counters.
type Server struct {
	store   *storage.Store
	token   string
	version string
}

// New validates the configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("server store cannot be nil")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("server token is required")
	}
	if cfg.Version == "" {
		cfg.Version = "meowstatus dev"
	}
	return &Server{store: cfg.Store, token: cfg.Token, version: cfg.Version}, nil
}

// Handler builds the full route table wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("POST /heartbeat", s.requireToken(s.handleHeartbeat))
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /status/manual", s.handleGetManualStatus)
	mux.HandleFunc("POST /status/manual", s.requireToken(s.handleSetManualStatus))
	mux.HandleFunc("GET /device", s.handleDeleteDevice)
	mux.HandleFunc("DELETE /device", s.handleDeleteDevice)
	mux.HandleFunc("POST /device/status", s.requireToken(s.handleDeviceStatusUpdate))
	mux.HandleFunc("GET /schedule", s.handleScheduleList)
	mux.HandleFunc("POST /schedule", s.requireToken(s.handleScheduleUpdate))
	mux.HandleFunc("GET /blog", s.handleBlogList)
	mux.HandleFunc("GET /blog/{slug}", s.handleBlogDetail)
	mux.HandleFunc("POST /blog", s.requireToken(s.handleBlogUpdate))
	mux.HandleFunc("GET /visitor", s.handleVisitorStats)
	mux.HandleFunc("POST /visitor/visit", s.handleVisitorVisit)
	return corsMiddleware(loggingMiddleware(mux))
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("status backend listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Wrap(srv.Shutdown(shutdownCtx), "server shutdown failed")
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server failed")
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":      "meowstatus-backend",
		"version":      s.version,
		"music_fields": true,
	})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var hb meowstatus.Heartbeat
	if err := json.NewDecoder(r.Body).Decode(&hb); err != nil {
		http.Error(w, "invalid heartbeat payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(hb.DeviceID) == "" {
		http.Error(w, "device_id is required", http.StatusBadRequest)
		return
	}
	log.Info().
		Str("device_id", hb.DeviceID).
		Bool("online", hb.Online).
		Int64("idle", hb.IdleSeconds).
		Bool("music_playing", hb.MusicPlaying).
		Str("music_title", hb.MusicTitle).
		Msg("heartbeat received")
	if err := s.store.RecordHeartbeat(r.Context(), hb, time.Now()); err != nil {
		log.Error().Err(err).Str("device_id", hb.DeviceID).Msg("record heartbeat failed")
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.DeviceStatuses(r.Context(), time.Now())
	if err != nil {
		log.Error().Err(err).Msg("query device statuses failed")
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetManualStatus(w http.ResponseWriter, r *http.Request) {
	enabled, updatedAt, err := s.store.GlobalManualOffline(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("query manual status failed")
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": enabled, "updated_at": updatedAt})
}

func (s *Server) handleSetManualStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	now := time.Now()
	if err := s.store.SetGlobalManualOffline(r.Context(), payload.Enabled, now); err != nil {
		log.Error().Err(err).Msg("set manual status failed")
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": payload.Enabled, "updated_at": now.Unix()})
}

// handleDeleteDevice keeps the original API shape: a GET with id and token in
// the query string.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("token") != s.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	if err := s.store.DeleteDevice(r.Context(), id); err != nil {
		log.Error().Err(err).Str("device_id", id).Msg("delete device failed")
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDeviceStatusUpdate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DeviceID      string  `json:"device_id"`
		DeviceName    *string `json:"device_name"`
		Online        *bool   `json:"online"`
		ManualOffline *bool   `json:"manual_offline"`
		MusicPlaying  *bool   `json:"music_playing"`
		MusicTitle    *string `json:"music_title"`
		MusicArtist   *string `json:"music_artist"`
		MusicSource   *string `json:"music_source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	patch := storage.DevicePatch{
		DeviceID:      payload.DeviceID,
		DeviceName:    payload.DeviceName,
		Online:        payload.Online,
		ManualOffline: payload.ManualOffline,
		MusicPlaying:  payload.MusicPlaying,
		MusicTitle:    payload.MusicTitle,
		MusicArtist:   payload.MusicArtist,
		MusicSource:   payload.MusicSource,
	}
	if err := s.store.UpdateDeviceStatus(r.Context(), patch, time.Now()); err != nil {
		log.Error().Err(err).Str("device_id", payload.DeviceID).Msg("device status update failed")
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleScheduleList(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ScheduleItems(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("query schedule failed")
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleScheduleUpdate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Items []storage.ScheduleItemInput `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := s.store.ReplaceSchedule(r.Context(), payload.Items, time.Now()); err != nil {
		log.Error().Err(err).Msg("replace schedule failed")
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleBlogList(w http.ResponseWriter, r *http.Request) {
	posts, err := s.store.BlogSummaries(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("query blog posts failed")
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleBlogDetail(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	post, found, err := s.store.BlogPost(r.Context(), slug)
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("query blog post failed")
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleBlogUpdate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Items []storage.BlogPostInput `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := s.store.ReplaceBlog(r.Context(), payload.Items, time.Now()); err != nil {
		log.Error().Err(err).Msg("replace blog posts failed")
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleVisitorStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.VisitorStats(r.Context(), time.Now())
	if err != nil {
		log.Error().Err(err).Msg("query visitor stats failed")
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleVisitorVisit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		VisitorID string `json:"visitor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.VisitorID) == "" {
		http.Error(w, "visitor_id is required", http.StatusBadRequest)
		return
	}
	if err := s.store.RecordVisit(r.Context(), payload.VisitorID, time.Now()); err != nil {
		log.Error().Err(err).Msg("record visit failed")
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("encode response failed")
	}
}
