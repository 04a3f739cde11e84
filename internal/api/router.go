// Package api exposes the simulation engine, settings and audio transports
// over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/satindergrewal/earshot/internal/audio"
	"github.com/satindergrewal/earshot/internal/engine"
	"github.com/satindergrewal/earshot/internal/graph"
	"github.com/satindergrewal/earshot/internal/recorder"
	"github.com/satindergrewal/earshot/internal/settings"
	"github.com/satindergrewal/earshot/internal/stream"
	"github.com/satindergrewal/earshot/internal/tour"
	"github.com/sirupsen/logrus"
)

// maxUploadBytes caps one PCM upload request (about 3 minutes of 48kHz stereo).
const maxUploadBytes = 32 << 20

// Server holds the handles the HTTP surface operates on.
type Server struct {
	engine      *engine.Engine
	settings    *settings.Store
	broadcaster *stream.Broadcaster
	listen      *stream.WebRTCHandler
	ingest      *stream.IngestHandler
	tour        *tour.Tour
	log         *logrus.Entry
}

// NewServer wires the HTTP surface to an engine, a settings store and the
// output broadcaster.
func NewServer(e *engine.Engine, s *settings.Store, b *stream.Broadcaster) *Server {
	return &Server{
		engine:      e,
		settings:    s,
		broadcaster: b,
		listen:      stream.NewWebRTCHandler(b),
		ingest:      stream.NewIngestHandler(e),
		tour:        tour.New(e),
		log:         logrus.WithField("component", "api"),
	}
}

// Router returns the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(allowOrigin)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods(http.MethodGet)

	// Audio transports
	r.Handle("/stream", stream.NewHTTPHandler(s.broadcaster)).Methods(http.MethodGet)
	r.Handle("/offer", s.listen).Methods(http.MethodPost, http.MethodOptions)
	r.Handle("/record/offer", s.ingest).Methods(http.MethodPost, http.MethodOptions)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/record/start", s.handleStartRecording).Methods(http.MethodPost)
	api.HandleFunc("/record/stop", s.handleStopRecording).Methods(http.MethodPost)
	api.HandleFunc("/record/upload", s.handleUpload).Methods(http.MethodPost)
	api.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	api.HandleFunc("/play", s.handlePlay).Methods(http.MethodPost)
	api.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/recording", s.handleRecording).Methods(http.MethodGet)
	api.HandleFunc("/chapters", s.handleChapters).Methods(http.MethodGet)
	api.HandleFunc("/chapters/next", s.handleNextChapter).Methods(http.MethodPost)
	api.HandleFunc("/chapters/previous", s.handlePreviousChapter).Methods(http.MethodPost)
	api.HandleFunc("/chapters/play", s.handlePlayChapter).Methods(http.MethodPost)
	api.HandleFunc("/chapters/{index:[0-9]+}", s.handleSelectChapter).Methods(http.MethodPost)
	api.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handlePutSettings).Methods(http.MethodPut)

	return r
}

func allowOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	s.engine.StartRecording()
	s.writeFlags(w)
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	s.engine.StopRecording()
	s.writeFlags(w)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.engine.ResetRecording()
	s.writeFlags(w)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.engine.StopAudio()
	s.writeFlags(w)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode *graph.Mode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, graph.ErrUnknownMode) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Mode == nil {
		http.Error(w, "mode required", http.StatusBadRequest)
		return
	}
	s.engine.PlaySimulation(*req.Mode)
	s.writeFlags(w)
}

// handleUpload appends a raw s16le PCM body to the capture in progress.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	rate, err := queryInt(r, "rate", audio.RecordSampleRate)
	if err != nil {
		http.Error(w, "invalid rate", http.StatusBadRequest)
		return
	}
	channels, err := queryInt(r, "channels", audio.RecordChannels)
	if err != nil || channels < 1 || channels > 2 {
		http.Error(w, "channels must be 1 or 2", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
		return
	}
	if len(body)%(2*channels) != 0 {
		http.Error(w, "body is not whole s16le frames", http.StatusBadRequest)
		return
	}

	err = s.engine.WriteCapture(rate, channels, audio.BytesToSamples(body))
	switch {
	case errors.Is(err, recorder.ErrNotRecording):
		http.Error(w, "not recording", http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"frames": len(body) / (2 * channels),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"engine":           s.engine.Status(),
		"volume":           s.settings.Volume(),
		"volume_warning":   s.settings.Get().VolumeWarning(),
		"http_listeners":   s.broadcaster.ListenerCount(),
		"webrtc_listeners": s.listen.PeerCount(),
		"microphones":      s.ingest.PeerCount(),
	})
}

func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	rec := s.engine.Recording()
	if rec == nil {
		http.Error(w, "no recording", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="recording.wav"`)
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, rec.Path)
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	current, _ := s.tour.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"chapters": tour.Chapters,
		"current":  current,
	})
}

func (s *Server) handleNextChapter(w http.ResponseWriter, r *http.Request) {
	moved := s.tour.Next()
	s.writeChapter(w, moved)
}

func (s *Server) handlePreviousChapter(w http.ResponseWriter, r *http.Request) {
	moved := s.tour.Previous()
	s.writeChapter(w, moved)
}

func (s *Server) handleSelectChapter(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(mux.Vars(r)["index"])
	if err == nil {
		err = s.tour.Select(i)
	}
	if err != nil {
		http.Error(w, "no such chapter", http.StatusNotFound)
		return
	}
	s.writeChapter(w, true)
}

func (s *Server) handlePlayChapter(w http.ResponseWriter, r *http.Request) {
	s.tour.Play()
	s.writeFlags(w)
}

func (s *Server) writeChapter(w http.ResponseWriter, moved bool) {
	i, ch := s.tour.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"moved":   moved,
		"current": i,
		"chapter": ch,
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.writeSettings(w, s.settings.Get())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var patch settings.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	updated, err := s.settings.Update(patch)
	if err != nil {
		s.log.WithError(err).Error("Saving settings failed")
		http.Error(w, "save settings failed", http.StatusInternalServerError)
		return
	}
	s.writeSettings(w, updated)
}

func (s *Server) writeSettings(w http.ResponseWriter, cfg settings.Settings) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"settings":       cfg,
		"volume_warning": cfg.VolumeWarning(),
	})
}

// writeFlags answers a pipeline operation with the resulting flags.
func (s *Server) writeFlags(w http.ResponseWriter) {
	st := s.engine.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"is_recording":  st.IsRecording,
		"has_recording": st.HasRecording,
		"state":         st.State,
		"mode":          st.Mode,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}
