package monitor

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/banshee-data/pose.report/internal/httputil"
	"github.com/banshee-data/pose.report/internal/pose/pipeline"
)

// handleVideoFeed runs one stream for this viewer and writes each annotated
// frame as a part of a multipart/x-mixed-replace response. The stream ends
// when the client disconnects, the stream is stopped or the source runs
// out.
func (s *Server) handleVideoFeed(w http.ResponseWriter, r *http.Request) {
	exercise := r.PathValue("exercise")
	if !s.mgr.Accepting() {
		httputil.ServiceUnavailable(w, pipeline.ErrManagerClosed.Error())
		return
	}

	mw := multipart.NewWriter(w)
	flusher, _ := w.(http.Flusher)
	started := false

	emit := func(ctx context.Context, out pipeline.Output) error {
		if len(out.Image) == 0 {
			return nil
		}
		if !started {
			w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Type", "image/jpeg")
		h.Set("Content-Length", strconv.Itoa(len(out.Image)))
		part, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("create part: %w", err)
		}
		if _, err := part.Write(out.Image); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	err := s.mgr.Run(r.Context(), pipeline.StreamRequest{
		Exercise: exercise,
		Session:  r.URL.Query().Get("session"),
	}, emit)

	if started {
		if cerr := mw.Close(); cerr != nil && r.Context().Err() == nil {
			logf("video feed %s: close multipart: %v", exercise, cerr)
		}
		if err != nil {
			logf("video feed %s ended: %v", exercise, err)
		}
		return
	}
	switch {
	case errors.Is(err, pipeline.ErrManagerClosed):
		httputil.ServiceUnavailable(w, err.Error())
	case err != nil:
		logf("video feed %s failed: %v", exercise, err)
		httputil.InternalServerError(w, "failed to start stream")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
