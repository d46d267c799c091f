// Package server provides the Echo web server and WebSocket relay for the
// piano visualizer.
package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/net/websocket"

	"github.com/chordscape/chordscape/algorithms/tonal"
	"github.com/chordscape/chordscape/logging"
	"github.com/chordscape/chordscape/pipeline"
)

// Config holds server configuration
type Config struct {
	Addr      string `json:"addr"`
	StaticDir string `json:"static_dir"` // Visualizer assets; empty disables
}

// DefaultConfig returns the standard server settings
func DefaultConfig() *Config {
	return &Config{
		Addr:      ":8080",
		StaticDir: "web",
	}
}

// Server exposes the analysis pipeline over HTTP and WebSocket. Each
// analysis request runs on its own goroutine so a multi-minute run never
// blocks the event loop; results and progress are broadcast to every
// connected visualizer.
type Server struct {
	config *Config
	pipe   *pipeline.Pipeline
	hub    *Hub
	echo   *echo.Echo
	logger logging.Logger
}

// New creates a server around an analysis pipeline
func New(config *Config, pipe *pipeline.Pipeline) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	s := &Server{
		config: config,
		pipe:   pipe,
		hub:    NewHub(),
		logger: logging.WithFields(logging.Fields{
			"component": "server",
		}),
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/health", s.handleHealth)
	e.POST("/analyze", s.handleAnalyze)
	e.GET("/ws", echo.WrapHandler(websocket.Handler(s.hub.Handler(s.runAnalysis))))
	if config.StaticDir != "" {
		e.Static("/", config.StaticDir)
	}

	s.echo = e
	return s
}

// Run starts the server and blocks
func (s *Server) Run() error {
	s.logger.Info("server starting", logging.Fields{"addr": s.config.Addr})
	return s.echo.Start(s.config.Addr)
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

type analyzeRequest struct {
	URL string `json:"url"`
}

// handleAnalyze accepts an analysis request and returns immediately; the
// run proceeds in the background and reports over the WebSocket relay
func (s *Server) handleAnalyze(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !strings.HasPrefix(req.URL, "http") {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid URL")
	}

	go s.runAnalysis(context.Background(), req.URL)

	return c.JSON(http.StatusAccepted, map[string]string{
		"status": "accepted",
		"url":    req.URL,
	})
}

// runAnalysis executes one pipeline run and relays progress, metadata, and
// the playable chord sequence to the connected clients
func (s *Server) runAnalysis(ctx context.Context, url string) {
	progress := func(stage pipeline.Stage, message string) {
		s.hub.Broadcast(statusMessage{
			Type:     "status_update",
			Status:   stageStatus(stage),
			Progress: int(stage.Progress() * 100),
			Message:  message,
		})
	}

	result, err := s.pipe.AnalyzeURL(ctx, url, progress)
	if err != nil {
		s.logger.Error(err, "analysis failed", logging.Fields{"url": url})
		s.hub.Broadcast(statusMessage{
			Type:    "status_update",
			Status:  "error",
			Message: "Analysis error: " + err.Error(),
		})
		return
	}

	s.hub.Broadcast(metadataMessage{
		Type:   "metadata",
		Key:    result.EstimatedKey,
		Source: "youtube",
		URL:    url,
	})

	s.hub.Broadcast(chordSequenceMessage{
		Type:   "chord_sequence",
		Chords: playableChords(result.ChordSequence),
	})
}

// stageStatus maps pipeline stages onto the visualizer's status vocabulary
func stageStatus(stage pipeline.Stage) string {
	switch stage {
	case pipeline.StageDownloading:
		return "downloading"
	case pipeline.StageExtracting, pipeline.StageClassifying:
		return "analyzing"
	case pipeline.StageEstimating:
		return "processing"
	case pipeline.StageComplete:
		return "complete"
	}
	return "analyzing"
}

// playableChords converts the chord sequence into visualizer items, folding
// each chord's MIDI notes into the keyboard range and skipping chords left
// with nothing playable
func playableChords(spans []pipeline.ChordSpan) []chordNotes {
	items := make([]chordNotes, 0, len(spans))
	for _, span := range spans {
		chord, err := tonal.ParseChord(span.Chord)
		if err != nil || chord.IsNone() {
			continue
		}
		notes := tonal.ClampToVisualizerRange(chord.Notes())
		if notes == nil {
			continue
		}
		items = append(items, chordNotes{
			Time:     span.StartTime,
			Duration: span.Duration,
			Notes:    notes,
			Chord:    span.Chord,
		})
	}
	return items
}
