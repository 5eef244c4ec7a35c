package monitor

import (
	"net/http"
	"time"

	"github.com/banshee-data/pose.report/internal/httputil"
	"github.com/banshee-data/pose.report/internal/pose/accuracy"
	"github.com/banshee-data/pose.report/internal/pose/pipeline"
	"github.com/banshee-data/pose.report/internal/pose/sink"
	"github.com/banshee-data/pose.report/internal/version"
)

type healthResponse struct {
	Status        string `json:"status"`
	Accepting     bool   `json:"accepting"`
	ActiveStreams int    `json:"active_streams"`
	Version       string `json:"version"`
	GitSHA        string `json:"git_sha"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if !s.mgr.Accepting() {
		status = "shutting_down"
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, healthResponse{
		Status:        status,
		Accepting:     s.mgr.Accepting(),
		ActiveStreams: s.mgr.Active(),
		Version:       version.Version,
		GitSHA:        version.GitSHA,
	})
}

func (s *Server) handleExercises(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]any{
		"categories": s.catalog.Listings(),
	})
}

// session resolves the ?session= parameter. The default session always
// exists; other sessions must have run at least one stream.
func (s *Server) session(r *http.Request) (string, *accuracy.Aggregator, bool) {
	id := r.URL.Query().Get("session")
	if id == "" || id == pipeline.DefaultSession {
		return pipeline.DefaultSession, s.mgr.Session(pipeline.DefaultSession), true
	}
	agg, ok := s.mgr.LookupSession(id)
	return id, agg, ok
}

type sessionStats struct {
	Session string `json:"session"`
	accuracy.Stats
}

func (s *Server) handleAccuracyStats(w http.ResponseWriter, r *http.Request) {
	id, agg, ok := s.session(r)
	if !ok {
		httputil.NotFound(w, "unknown session "+id)
		return
	}
	httputil.WriteJSONOK(w, sessionStats{Session: id, Stats: agg.Stats()})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	ids := s.mgr.SessionIDs()
	out := make([]sessionStats, 0, len(ids))
	for _, id := range ids {
		if agg, ok := s.mgr.LookupSession(id); ok {
			out = append(out, sessionStats{Session: id, Stats: agg.Stats()})
		}
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) handleResetAccuracy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
		return
	}
	id, agg, ok := s.session(r)
	if !ok {
		httputil.NotFound(w, "unknown session "+id)
		return
	}
	agg.Reset()
	logf("accuracy reset for session %s", id)
	httputil.WriteJSONOK(w, map[string]string{"status": "reset", "session": id})
}

// historyEntry is an Event with its ratios rendered as percentages.
type historyEntry struct {
	ID                  string    `json:"id"`
	StreamID            string    `json:"stream_id"`
	PoseName            string    `json:"pose_name"`
	IsCorrect           bool      `json:"is_correct"`
	Feedback            string    `json:"feedback"`
	DetectionConfidence float64   `json:"detection_confidence"`
	AvgVisibility       float64   `json:"avg_visibility"`
	FrameAccuracy       float64   `json:"frame_accuracy"`
	Timestamp           time.Time `json:"timestamp"`
}

func toHistoryEntry(e sink.Event) historyEntry {
	return historyEntry{
		ID:                  e.ID,
		StreamID:            e.StreamID,
		PoseName:            e.Exercise,
		IsCorrect:           e.Correct,
		Feedback:            e.Detail,
		DetectionConfidence: e.ConfidencePercent(),
		AvgVisibility:       e.VisibilityPercent(),
		FrameAccuracy:       e.AccuracyPercent(),
		Timestamp:           e.Timestamp,
	}
}

// history reads the newest events honoring ?limit=.
func (s *Server) history(w http.ResponseWriter, r *http.Request) ([]sink.Event, bool) {
	sk := s.mgr.Sink()
	def := sink.DefaultConfig().HistoryLimit
	if sk != nil {
		def = sk.Config().HistoryLimit
	}
	limit, err := httputil.QueryInt(r, "limit", def, maxHistory)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return nil, false
	}
	if sk == nil {
		return nil, true
	}
	events, err := sk.History(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, "failed to read history")
		return nil, false
	}
	return events, true
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	events, ok := s.history(w, r)
	if !ok {
		return
	}
	out := make([]historyEntry, 0, len(events))
	for _, e := range events {
		out = append(out, toHistoryEntry(e))
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.mgr.Streams())
}

func (s *Server) handleStopStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.mgr.Stop(id) {
		httputil.NotFound(w, "no active stream "+id)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "stopping", "id": id})
}
