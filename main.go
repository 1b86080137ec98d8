package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/formation.report/internal/config"
	"github.com/banshee-data/formation.report/internal/mission"
	"github.com/banshee-data/formation.report/internal/supervisor"
	"github.com/banshee-data/formation.report/internal/telemetry"
	"github.com/banshee-data/formation.report/internal/timeutil"
	"github.com/banshee-data/formation.report/internal/triallog"
)

var (
	configPath = flag.String("config", "trial.json", "Path to trial configuration JSON")
	name       = flag.String("name", "formation_trials", "Filename base to save trial data")
	trial      = flag.Int("trial", -1, "Trial number (required)")
	listen     = flag.String("listen", "", "Override UDP telemetry listen address")
	missionURL = flag.String("mission", "", "Override mission controller URL")
)

func main() {
	flag.Parse()

	if *trial < 0 {
		log.Fatal("trial number is required (-trial)")
	}

	cfg, err := config.LoadTrialConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	listenAddr := cfg.GetListenAddr()
	if *listen != "" {
		listenAddr = *listen
	}
	endpoint := cfg.GetMissionEndpoint()
	if *missionURL != "" {
		endpoint = *missionURL
	}

	datafile := filepath.Join(cfg.GetOutputDir(), fmt.Sprintf("%s.csv", *name))

	store := telemetry.NewStore(cfg.Agents)
	listener := telemetry.NewListener(telemetry.ListenerConfig{
		Address: listenAddr,
		Store:   store,
	})
	missionClient := mission.NewClient(endpoint, cfg.GetMissionTimeout())
	logger := triallog.NewLogger(cfg.Agents, cfg.GetSmoothingAlpha(), *trial)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	// run the telemetry ingest routine; producers write into the store,
	// the tick loop below is the sole reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("telemetry listener failed: %v", err)
		}
		log.Print("telemetry routine terminated")
	}()

	// the mission controller must be reachable before the first tick
	if err := missionClient.WaitReady(ctx, 20, 500*time.Millisecond); err != nil {
		stop()
		wg.Wait()
		log.Fatalf("mission controller not available: %v", err)
	}

	formations := make([]string, len(cfg.Formations))
	for i, f := range cfg.Formations {
		formations[i] = f.Name
	}

	sup := supervisor.New(supervisor.Config{
		Agents:                cfg.Agents,
		Formations:            formations,
		TakeoffAltitude:       cfg.GetTakeoffAltitude(),
		TickRate:              cfg.GetTickRate(),
		WindowTicks:           cfg.WindowTicks(),
		SimInitTimeout:        cfg.GetSimInitTimeout(),
		TakeOffTimeout:        cfg.GetTakeOffTimeout(),
		HoverWait:             cfg.GetHoverWait(),
		AssignmentTimeout:     cfg.GetAssignmentTimeout(),
		FormationReceivedWait: cfg.GetFormationReceivedWait(),
		ConvergedWait:         cfg.GetConvergedWait(),
		GridlockTimeout:       cfg.GetGridlockTimeout(),
		TrialTimeout:          cfg.GetTrialTimeout(),
		PositionTolerance:     cfg.GetPositionTolerance(),
		ZeroVelThreshold:      cfg.GetZeroVelThreshold(),
		AvoidanceThreshold:    cfg.GetAvoidanceThreshold(),
	}, timeutil.RealClock{}, store, missionClient, logger)

	log.Printf("supervising trial %d: %d agents, %d formations, tick rate %d Hz",
		*trial, len(cfg.Agents), len(formations), cfg.GetTickRate())

	result := runTrial(ctx, sup, cfg.GetTickRate())

	// stop the ingest routine before flushing output
	stop()
	wg.Wait()

	if !result.Done {
		log.Print("trial interrupted before completion; no record written")
		os.Exit(1)
	}

	if !result.Completed {
		log.Printf("trial terminated from state %s", result.PriorPhase)
		if result.Err != nil {
			log.Printf("termination cause: %v", result.Err)
		}
		os.Exit(1)
	}

	rec := logger.Finalize()
	if err := rec.AppendCSV(datafile); err != nil {
		log.Fatalf("failed to write trial row: %v", err)
	}
	trialStore, err := triallog.NewStore(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("failed to open trial store: %v", err)
	}
	defer trialStore.Close()
	if err := trialStore.SaveRecord(rec); err != nil {
		log.Fatalf("failed to persist trial record: %v", err)
	}

	log.Printf("trial %d completed successfully; data appended to %s", *trial, datafile)
}

// runTrial drives the supervisor at the configured tick rate until the
// trial reaches a terminal phase or the context is cancelled.
func runTrial(ctx context.Context, sup *supervisor.Supervisor, tickRate int) supervisor.Result {
	clock := timeutil.RealClock{}
	ticker := clock.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	var result supervisor.Result
	for {
		select {
		case <-ctx.Done():
			return result
		case <-ticker.C():
			result = sup.Tick(ctx)
			if result.Done {
				return result
			}
		}
	}
}
