package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/google/uuid"

	"github.com/banshee-data/pose.report/internal/db"
	"github.com/banshee-data/pose.report/internal/pose/accuracy"
	"github.com/banshee-data/pose.report/internal/pose/annotate"
	"github.com/banshee-data/pose.report/internal/pose/pipeline"
	"github.com/banshee-data/pose.report/internal/pose/replay"
	"github.com/banshee-data/pose.report/internal/pose/rules"
	"github.com/banshee-data/pose.report/internal/pose/sink"
	"github.com/banshee-data/pose.report/internal/pose/storage/sqlite"
	"github.com/banshee-data/pose.report/internal/security"
)

type options struct {
	File         string
	Exercise     string
	Session      string
	Speed        float64
	DBPath       string
	SaveInterval time.Duration
	OutDir       string
	Gate         bool
	Visibility   float64
	Progress     bool
}

type result struct {
	File          string         `json:"file"`
	Exercise      string         `json:"exercise"`
	StreamID      string         `json:"stream_id"`
	Frames        uint64         `json:"frames"`
	SavedEvents   uint64         `json:"saved_events"`
	FramesWritten int            `json:"frames_written,omitempty"`
	Stats         accuracy.Stats `json:"stats"`
}

// countRecords returns the number of non-blank lines in a recording so the
// progress bar has a total.
func countRecords(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) > 0 {
			n++
		}
	}
	return n, sc.Err()
}

func run(ctx context.Context, o options, progress io.Writer) (result, error) {
	res := result{File: o.File, Exercise: o.Exercise}

	if _, ok := rules.Default().Lookup(o.Exercise); !ok {
		return res, fmt.Errorf("unknown exercise %q", o.Exercise)
	}
	total, err := countRecords(o.File)
	if err != nil {
		return res, fmt.Errorf("read recording: %w", err)
	}

	if o.Session == "" {
		o.Session = uuid.NewString()
	}
	res.StreamID = o.Session

	cfg := pipeline.StreamConfig{
		ID:        o.Session,
		Exercise:  o.Exercise,
		Source:    replay.NewFileSource(o.File, replay.Config{SpeedMultiplier: o.Speed, Blank: o.OutDir != ""}),
		Landmarks: replay.Detector{},
		Evaluator: rules.NewEvaluator(rules.Default(), rules.WithVisibilityThreshold(o.Visibility)),
	}
	if o.Gate {
		// Frames without recorded boxes are then counted as not detected.
		cfg.Coarse = replay.Detector{}
	}

	var events *sink.Sink
	if o.DBPath != "" {
		if err := security.ValidateOutputPath(o.DBPath); err != nil {
			return res, fmt.Errorf("invalid -db: %w", err)
		}
		database, err := db.OpenAndMigrate(db.DriverSQLite, o.DBPath)
		if err != nil {
			return res, fmt.Errorf("open database: %w", err)
		}
		defer database.Close()
		events = sink.New(sqlite.NewEventStore(database.DB), sink.Config{Interval: o.SaveInterval})
		cfg.Recorder = events.Recorder(o.Session)
	}

	if o.OutDir != "" {
		if err := security.ValidateOutputPath(o.OutDir); err != nil {
			return res, fmt.Errorf("invalid -out: %w", err)
		}
		if err := os.MkdirAll(o.OutDir, 0o755); err != nil {
			return res, fmt.Errorf("create output directory: %w", err)
		}
		cfg.Annotator = annotate.New(annotate.Options{})
	}

	stream, err := pipeline.NewStream(cfg)
	if err != nil {
		return res, err
	}

	var bar *pb.ProgressBar
	if o.Progress {
		bar = pb.New(total).SetWriter(progress).Start()
		defer bar.Finish()
	}

	err = stream.Run(ctx, func(ctx context.Context, out pipeline.Output) error {
		if bar != nil {
			bar.Increment()
		}
		if o.OutDir == "" || len(out.Image) == 0 {
			return nil
		}
		path := filepath.Join(o.OutDir, security.FrameFileName(o.Exercise, out.Frame.Seq))
		if err := security.ValidatePathWithinDirectory(path, o.OutDir); err != nil {
			return err
		}
		if err := os.WriteFile(path, out.Image, 0o644); err != nil {
			return err
		}
		res.FramesWritten++
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return res, err
	}

	res.Frames = stream.Frames()
	res.Stats = stream.Aggregator().Stats()
	if events != nil {
		res.SavedEvents, _, _ = events.Counters()
	}
	return res, nil
}
