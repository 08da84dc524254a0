package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/powerlog/internal/alert"
	"codeberg.org/mutker/powerlog/internal/config"
	"codeberg.org/mutker/powerlog/internal/errors"
	"codeberg.org/mutker/powerlog/internal/logfile"
	"codeberg.org/mutker/powerlog/internal/logger"
	"codeberg.org/mutker/powerlog/internal/power"
	"codeberg.org/mutker/powerlog/internal/sampler"
	"codeberg.org/mutker/powerlog/internal/state"
)

const (
	stateFileName = "powerlog.db"

	// Each invocation is short-lived; this bounds the whole run including
	// the blocking CPU sample and any notification calls.
	runTimeout = 30 * time.Second

	bytesPerMB = 1024 * 1024
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, logger.IsService())

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	messenger := alert.NewMessenger(cfg.BotToken, cfg.ChatID)

	if cfg.Export != "" {
		if err := runExport(ctx, cfg, messenger); err != nil {
			logger.Fatal().Err(err).Msg("Export failed")
		}
		return
	}

	run(ctx, cfg, messenger)
}

// run executes one sampling invocation. Only config loading is fatal;
// every other failure degrades its own stage so that partial
// functionality is preserved.
func run(ctx context.Context, cfg *config.Config, messenger *alert.Messenger) {
	snap := sampler.Collect(ctx, sampler.Config{
		DiskPath:    cfg.DiskPath,
		CPUInterval: time.Second,
	})

	var prev *power.State
	repo, err := state.NewRepository(state.Config{
		DBPath: filepath.Join(cfg.DataDir, stateFileName),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("State store unavailable, starting cold")
		repo = nil
	} else {
		defer repo.Close()
		prev, err = repo.LoadPowerState(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Persisted power state unreadable, starting cold")
			prev = nil
		}
	}

	estimator := power.Estimator{
		Formula: power.Formula{
			IdleWatts:         cfg.Power.IdleWatts,
			CPUWatts:          cfg.Power.CPUWatts,
			NetworkWattsPerMB: cfg.Power.NetworkWattsPerMB,
		},
	}
	derived, next := estimator.Derive(prev, snap)

	if repo != nil {
		if err := repo.SavePowerState(ctx, next); err != nil {
			logFailure(err, "Failed to persist power state")
		}
		if err := repo.RecordSample(ctx, snap, derived); err != nil {
			logFailure(err, "Failed to record sample history")
		}
	}

	writer := logfile.NewWriter(cfg.DataDir)
	rec := logfile.Record{
		Timestamp:      snap.Timestamp,
		CPULoad:        snap.CPULoad,
		Temperature:    snap.Temperature,
		HasTemperature: snap.HasTemperature,
		RAMUsage:       snap.RAMUsage,
		DiskUsage:      snap.DiskUsage,
		SentMB:         float64(snap.BytesSent) / bytesPerMB,
		RecvMB:         float64(snap.BytesRecv) / bytesPerMB,
		Watts:          derived.Watts,
		IntervalWh:     derived.IntervalWh,
	}
	if err := writer.Append(rec); err != nil {
		// Metrics were still collected; alerting proceeds.
		logFailure(err, "Failed to write log record")
	}

	breaches := alert.Evaluate(alert.Reading{
		CPULoad:        snap.CPULoad,
		Temperature:    snap.Temperature,
		HasTemperature: snap.HasTemperature,
		RAMUsage:       snap.RAMUsage,
		DiskUsage:      snap.DiskUsage,
		Watts:          derived.Watts,
	}, cfg.Thresholds)
	sent := alert.Dispatch(ctx, messenger, breaches)

	logger.Info().
		Float64("cpu_load", snap.CPULoad).
		Float64("watts", derived.Watts).
		Int("breaches", len(breaches)).
		Int("alerts_sent", sent).
		Msg("Invocation complete")
}

func logFailure(err error, msg string) {
	logger.Error().
		Str("error_code", string(errors.CodeOf(err))).
		Err(err).
		Msg(msg)
}

// runExport sends the live log (--export current) or an archived day's
// log (--export YYYY-MM-DD) to the configured chat.
func runExport(ctx context.Context, cfg *config.Config, messenger *alert.Messenger) error {
	writer := logfile.NewWriter(cfg.DataDir)

	path := writer.LivePath()
	if cfg.Export != "current" {
		day, err := time.ParseInLocation("2006-01-02", cfg.Export, time.Local)
		if err != nil {
			return fmt.Errorf("invalid export date %q: %w", cfg.Export, err)
		}
		path = writer.ArchivePath(day)
	}

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no log file for %q: %w", cfg.Export, err)
	}

	if err := messenger.SendDocument(ctx, path); err != nil {
		return err
	}

	logger.Info().Str("file", path).Msg("Log file sent")

	return nil
}
