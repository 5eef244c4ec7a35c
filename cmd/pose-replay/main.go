// Command pose-replay runs a recorded landmark session through the
// evaluation pipeline offline and prints the resulting accuracy stats.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/pose.report/internal/version"
)

func main() {
	var o options

	flag.StringVar(&o.File, "file", "", "JSONL recording to replay (or first positional argument)")
	flag.StringVar(&o.Exercise, "exercise", "", "Exercise to evaluate against (required)")
	flag.StringVar(&o.Session, "session", "", "Stream ID recorded on saved events (random when empty)")
	flag.Float64Var(&o.Speed, "speed", 0, "Replay speed multiplier; 0 replays as fast as possible")
	flag.StringVar(&o.DBPath, "db", "", "Optional sqlite file to persist throttled events into")
	flag.DurationVar(&o.SaveInterval, "save-interval", 3*time.Second, "Minimum time between saved events")
	flag.StringVar(&o.OutDir, "out", "", "Optional directory for annotated JPEG frames")
	flag.BoolVar(&o.Gate, "gate", false, "Require a recorded person box before evaluating each frame")
	flag.Float64Var(&o.Visibility, "visibility", 0, "Treat frames as not detected when a rule joint's visibility is not above this (0 disables)")
	flag.BoolVar(&o.Progress, "progress", true, "Show a progress bar on stderr")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("pose-replay"))
		return
	}

	if o.File == "" {
		o.File = flag.Arg(0)
	}
	if o.File == "" || o.Exercise == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := run(ctx, o, os.Stderr)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Fatalf("encode result: %v", err)
	}
	if res.FramesWritten > 0 {
		fmt.Fprintf(os.Stderr, "wrote %d frames to %s\n", res.FramesWritten, o.OutDir)
	}
}
