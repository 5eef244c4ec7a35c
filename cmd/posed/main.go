// Command posed serves live pose evaluation: an annotated MJPEG feed per
// viewer, accuracy and history APIs, a dashboard and gRPC health.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/banshee-data/pose.report/internal/config"
	"github.com/banshee-data/pose.report/internal/db"
	"github.com/banshee-data/pose.report/internal/pose/annotate"
	"github.com/banshee-data/pose.report/internal/pose/capture"
	"github.com/banshee-data/pose.report/internal/pose/detector"
	"github.com/banshee-data/pose.report/internal/pose/emitter"
	"github.com/banshee-data/pose.report/internal/pose/fusion"
	"github.com/banshee-data/pose.report/internal/pose/monitor"
	"github.com/banshee-data/pose.report/internal/pose/pipeline"
	"github.com/banshee-data/pose.report/internal/pose/replay"
	"github.com/banshee-data/pose.report/internal/pose/rules"
	"github.com/banshee-data/pose.report/internal/pose/sink"
	"github.com/banshee-data/pose.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a .json or .yaml config file (defaults apply when empty)")
	listen      = flag.String("listen", "", "HTTP listen address (overrides config)")
	grpcListen  = flag.String("grpc-listen", "", "gRPC health listen address (overrides config)")
	dbDriver    = flag.String("db-driver", "", "Database driver: sqlite or postgres (overrides config)")
	dbDSN       = flag.String("db-dsn", "", "Database file or DSN (overrides config and POSE_DB_DSN)")
	replayPath  = flag.String("replay", "", "Serve a JSONL recording instead of the camera")
	replaySpeed = flag.Float64("replay-speed", 1.0, "Replay speed multiplier; 0 disables pacing")
	mqttBroker  = flag.String("mqtt-broker", "", "MQTT broker URL (overrides config and POSE_MQTT_BROKER)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("posed"))
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}

	cfg, err := loadConfig(*configPath, os.LookupEnv, overrides{
		Listen:     *listen,
		GRPCListen: *grpcListen,
		DBDriver:   *dbDriver,
		DBDSN:      *dbDSN,
		MQTTBroker: *mqttBroker,
	})
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if flag.Arg(0) == "migrate" {
		database, err := db.Open(cfg.GetDBDriver(), cfg.GetDBDSN())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
		if err := db.RunMigrateCommand(database, flag.Args()[1:], os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	if err := serve(cfg); err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: posed [flags]\n       posed [flags] migrate <up|down|status|version N|force N>\n\n")
	flag.PrintDefaults()
}

func serve(cfg *config.PoseConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.OpenAndMigrate(cfg.GetDBDriver(), cfg.GetDBDSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	store := newStore(database)
	events := sink.New(store, sink.Config{
		Interval:     cfg.GetSaveInterval(),
		Timeout:      cfg.GetSaveTimeout(),
		HistoryLimit: cfg.GetHistoryLimit(),
	})

	if broker := cfg.GetMQTTBroker(); broker != "" {
		pub, err := emitter.Connect(ctx, emitter.Config{
			Broker:   broker,
			ClientID: cfg.GetMQTTClientID(),
			Topic:    cfg.GetMQTTTopic(),
		})
		if err != nil {
			log.Printf("MQTT disabled: %v", err)
		} else {
			events.AddPublisher(pub)
			defer pub.Disconnect()
		}
	}

	rt, closeDetector, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDetector()
	rt.Sink = events

	mgr := pipeline.NewManager(rt)
	srv, err := monitor.NewServer(monitor.Config{
		Address: cfg.GetListen(),
		Manager: mgr,
		Catalog: rules.Default(),
		DB:      database,
	})
	if err != nil {
		return err
	}
	health := monitor.NewHealth(mgr, nil)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Start(ctx); err != nil {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := health.ListenAndServe(ctx, cfg.GetGRPCListen(), time.Second); err != nil {
			log.Printf("gRPC server error: %v", err)
		}
	}()

	if maxAge := cfg.GetRetentionMaxAge(); maxAge > 0 {
		retention := &sink.Retention{Store: store, MaxAge: maxAge, Interval: cfg.GetRetentionInterval()}
		wg.Add(1)
		go func() {
			defer wg.Done()
			retention.Run(ctx)
		}()
	}

	<-ctx.Done()
	log.Printf("shutting down, %d active streams", mgr.Active())

	// Streams end first so open video feeds let the HTTP server drain.
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mgr.Close(closeCtx); err != nil {
		log.Printf("stream manager close: %v", err)
	}
	health.Sync()

	wg.Wait()
	saved, failed, throttled := events.Counters()
	log.Printf("Graceful shutdown complete (events saved=%d failed=%d throttled=%d)", saved, failed, throttled)
	return nil
}

// buildRuntime picks the frame source and detectors: a replay file when
// -replay is set, otherwise the camera plus the detector subprocess.
func buildRuntime(ctx context.Context, cfg *config.PoseConfig) (pipeline.Runtime, func(), error) {
	rt := pipeline.Runtime{
		Gate:         fusion.NewGate(cfg.GetGateThreshold()),
		Evaluator:    rules.NewEvaluator(rules.Default(), rules.WithVisibilityThreshold(cfg.GetVisibilityThreshold())),
		Annotator:    annotate.New(annotate.Options{Quality: cfg.GetJPEGQuality()}),
		RingCapacity: cfg.GetRingCapacity(),
	}

	if *replayPath != "" {
		replayed, err := replayRuntime(rt, cfg, *replayPath, *replaySpeed)
		if err != nil {
			return rt, nil, err
		}
		return replayed, func() {}, nil
	}

	command := cfg.GetDetectorCommand()
	if command == "" {
		return rt, nil, errors.New("no detector_command configured; set one or use -replay")
	}
	worker, err := detector.Start(ctx, detector.Config{
		Command: command,
		Args:    cfg.DetectorArgs,
		Timeout: cfg.GetDetectorTimeout(),
	})
	if err != nil {
		return rt, nil, fmt.Errorf("failed to start detector: %w", err)
	}
	rt.Landmarks = worker
	if cfg.GetCoarseDetector() {
		rt.Coarse = worker
	}

	source := capture.Config{Source: cfg.GetCaptureSource(), Mirror: true}
	rt.NewSource = func() (pipeline.FrameSource, error) {
		return capture.Open(source)
	}
	closeWorker := func() {
		if err := worker.Close(); err != nil {
			log.Printf("detector close: %v", err)
		}
		requests, failures := worker.Counters()
		log.Printf("detector handled %d requests (%d failed)", requests, failures)
	}
	return rt, closeWorker, nil
}

// replayRuntime serves path in place of the camera. Recorded boxes feed the
// gate only when coarse_detector is enabled, as with the live detector.
func replayRuntime(rt pipeline.Runtime, cfg *config.PoseConfig, path string, speed float64) (pipeline.Runtime, error) {
	if _, err := os.Stat(path); err != nil {
		return rt, fmt.Errorf("replay file: %w", err)
	}
	rt.NewSource = func() (pipeline.FrameSource, error) {
		return replay.NewFileSource(path, replay.Config{SpeedMultiplier: speed, Blank: true}), nil
	}
	rt.Landmarks = replay.Detector{}
	if cfg.GetCoarseDetector() {
		rt.Coarse = replay.Detector{}
	}
	log.Printf("serving replay %s at %.1fx (gate=%t)", path, speed, rt.Coarse != nil)
	return rt, nil
}
