package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/irctrakz/tcpsim/pkg/config"
	"github.com/irctrakz/tcpsim/pkg/logging"
	"github.com/irctrakz/tcpsim/pkg/pcapexport"
	"github.com/irctrakz/tcpsim/pkg/scenario"
	"github.com/irctrakz/tcpsim/pkg/sim"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		usage()
		return
	}

	// Load config: defaults, then the optional file, then env overrides
	cfg := config.DefaultConfig()
	if len(os.Args) > 1 {
		if err := config.LoadFromFile(os.Args[1], cfg); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.ResolveScenario(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.ApplyLogging(); err != nil {
		log.Fatalf("logging: %v", err)
	}

	s, err := sim.New(cfg.Sim)
	if err != nil {
		log.Fatalf("sim: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Infof("running scenario: %d steps, preset=%q", len(cfg.Scenario.Steps), cfg.Scenario.Preset)
	results, err := scenario.Run(ctx, s, cfg.Scenario)
	if err != nil {
		// A cancelled run still reports what happened so far
		logging.Warnf("scenario stopped: %v", err)
	}

	snap := buildReport(s, cfg.Scenario.Preset, results)
	if err := writeReport(os.Stdout, snap, cfg.Output.Format); err != nil {
		log.Fatalf("report: %v", err)
	}

	if cfg.Output.PCAP != "" {
		opts := pcapexport.Options{IncludeLost: cfg.Output.IncludeLost}
		if _, err := pcapexport.WriteFile(cfg.Output.PCAP, snap.Wire, opts); err != nil {
			log.Fatalf("pcap: %v", err)
		}
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [config.{yaml,json,lua}]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "environment:\n")
	fmt.Fprintf(os.Stderr, "  TCPSIM_PRESET      one of %v\n", sim.PresetNames())
	fmt.Fprintf(os.Stderr, "  TCPSIM_RTT_MS TCPSIM_LOSS_PCT TCPSIM_MSS TCPSIM_CWND TCPSIM_RWND TCPSIM_SEED\n")
	fmt.Fprintf(os.Stderr, "  TCPSIM_NAGLE TCPSIM_NODELAY TCPSIM_DURATION_MS\n")
	fmt.Fprintf(os.Stderr, "  TCPSIM_FORMAT      text or json\n")
	fmt.Fprintf(os.Stderr, "  TCPSIM_PCAP        write the wire log to a pcap file\n")
	fmt.Fprintf(os.Stderr, "  LOGGING_LEVEL LOGGING_FILE LOGGING_MAX_SIZE LOGGING_MAX_BACKUPS LOGGING_MAX_AGE\n")
}
