package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/satindergrewal/earshot/internal/api"
	"github.com/satindergrewal/earshot/internal/audio"
	"github.com/satindergrewal/earshot/internal/cli"
	"github.com/satindergrewal/earshot/internal/config"
	"github.com/satindergrewal/earshot/internal/engine"
	"github.com/satindergrewal/earshot/internal/recorder"
	"github.com/satindergrewal/earshot/internal/settings"
	"github.com/satindergrewal/earshot/internal/stream"
	"github.com/sirupsen/logrus"
)

var version = "0.1.0"

// CLI defines the command-line interface. Flag defaults come from the
// EARSHOT_* environment.
type CLI struct {
	Version          bool   `short:"v" help:"Show version information"`
	Port             int    `short:"p" default:"${port}" help:"HTTP listen port"`
	DataDir          string `short:"d" type:"path" default:"${data_dir}" help:"Directory for the recording and settings"`
	LogLevel         string `default:"${log_level}" enum:"trace,debug,info,warn,error" help:"Log level"`
	MaxRecordSeconds int    `default:"${max_record_seconds}" help:"Longest capture kept, 0 for no limit"`
}

func main() {
	cfg := config.Load()

	args := &CLI{}
	kong.Parse(args,
		kong.Name("earshot"),
		kong.Description("Hearing-impairment audio simulation service"),
		kong.UsageOnError(),
		kong.Vars{
			"port":               strconv.Itoa(cfg.Port),
			"data_dir":           cfg.DataDir,
			"log_level":          cfg.LogLevel,
			"max_record_seconds": strconv.Itoa(cfg.MaxRecordSeconds),
		},
	)

	if args.Version {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	cfg.Port = args.Port
	cfg.DataDir = args.DataDir
	cfg.LogLevel = args.LogLevel
	cfg.MaxRecordSeconds = args.MaxRecordSeconds

	if err := run(cfg); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := logrus.WithField("component", "main")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	base := settings.Defaults()
	base.AudioVolume = cfg.DefaultVolume
	store, err := settings.Open(cfg.SettingsDir(), base)
	if err != nil {
		return err
	}
	defer store.Close()

	// Output pump: one 20ms frame per tick, silence while idle
	player := audio.NewPlayer()
	go player.Run(ctx)

	// Broadcaster: fan-out output frames to all listeners
	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx, player.Frames())

	eng := engine.New(engine.Options{
		Recorder:      recorder.New(cfg.RecordingPath(), cfg.RecordRate, cfg.MaxRecordDuration()),
		Output:        player,
		Volume:        store,
		DefaultVolume: cfg.DefaultVolume,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(eng, store, broadcaster).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		eng.StopAudio()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
		}
	}()

	fmt.Print(cli.Banner(version,
		cli.Field{Key: "Listen", Value: addr},
		cli.Field{Key: "Data", Value: cfg.DataDir},
		cli.Field{Key: "Record rate", Value: fmt.Sprintf("%d Hz", cfg.RecordRate)},
		cli.Field{Key: "Volume", Value: strconv.FormatFloat(store.Volume(), 'f', 2, 64)},
	))
	if store.Get().VolumeWarning() {
		log.WithField("volume", store.Volume()).Warn("Audio volume above hearing-safety threshold")
	}

	log.WithField("addr", addr).Info("earshot live")
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
