package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"embedbot/internal/catalog"
	"embedbot/internal/config"
	"embedbot/internal/journal"

	"github.com/spf13/cobra"
)

type verdict string

const (
	pass verdict = "PASS"
	warn verdict = "WARN"
	fail verdict = "FAIL"
	skip verdict = ""
)

type finding struct {
	check  string
	result verdict
	detail string
}

// probe inspects one part of the installation. Returning skip leaves the
// check out of the report.
type probe struct {
	name string
	run  func(ctx context.Context, cfg *config.Config) (verdict, string)
}

var probes = []probe{
	{"Gateways", probeGateways},
	{"Catalog", probeCatalog},
	{"Journal", probeJournal},
	{"Metrics listener", probeMetrics},
	{"Log file", probeLogFile},
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the config, catalog, journal and metrics listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "embedbot doctor v%s\n\n", version)

			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err != nil {
				report(out, []finding{{"Config file", fail, "missing: run 'embedbot init'"}})
				return fmt.Errorf("no config at %s", cfgPath)
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				report(out, []finding{{"Config file", fail, err.Error()}})
				return fmt.Errorf("config invalid")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			findings := diagnose(ctx, cfg)
			findings = append([]finding{{"Config file", pass, cfgPath}}, findings...)
			failed := report(out, findings)
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

func diagnose(ctx context.Context, cfg *config.Config) []finding {
	var out []finding
	for _, p := range probes {
		v, detail := p.run(ctx, cfg)
		if v == skip {
			continue
		}
		out = append(out, finding{p.name, v, detail})
	}
	return out
}

// report prints findings as an aligned table and returns the failure count.
func report(w io.Writer, findings []finding) int {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	counts := map[verdict]int{}
	for _, f := range findings {
		counts[f.result]++
		fmt.Fprintf(tw, "  [%s]\t%s\t%s\n", f.result, f.check, f.detail)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d passed, %d warnings, %d failed\n", counts[pass], counts[warn], counts[fail])
	return counts[fail]
}

func probeGateways(_ context.Context, cfg *config.Config) (verdict, string) {
	var on []string
	if cfg.Channels.Discord.Enabled {
		on = append(on, "discord")
	}
	if cfg.Channels.Telegram.Enabled {
		on = append(on, "telegram")
	}
	if cfg.Channels.Slack.Enabled {
		on = append(on, "slack")
	}
	if len(on) == 0 {
		return warn, "no gateway is enabled"
	}
	return pass, fmt.Sprint(on)
}

func probeCatalog(_ context.Context, cfg *config.Config) (verdict, string) {
	entries, err := catalog.LoadFromDirectory(cfg.Catalog.Dir, logger)
	if err != nil {
		return fail, err.Error()
	}
	if len(entries) == 0 {
		return warn, "no responses in " + cfg.Catalog.Dir
	}
	for _, e := range entries {
		if _, err := catalog.Build(e); err != nil {
			return fail, err.Error()
		}
	}
	return pass, fmt.Sprintf("%d responses", len(entries))
}

// probeJournal opens the journal the way run does, which also migrates it.
func probeJournal(ctx context.Context, cfg *config.Config) (verdict, string) {
	if !cfg.Journal.Enabled {
		return skip, ""
	}
	store, err := journal.Open(cfg.Journal.DBPath, logger)
	if err != nil {
		return fail, err.Error()
	}
	defer store.Close()
	if _, err := store.Recent(ctx, 1); err != nil {
		return fail, "not readable: " + err.Error()
	}
	return pass, cfg.Journal.DBPath
}

func probeMetrics(_ context.Context, cfg *config.Config) (verdict, string) {
	if !cfg.Metrics.Enabled {
		return skip, ""
	}
	ln, err := net.Listen("tcp", cfg.Metrics.Listen)
	if err != nil {
		return warn, fmt.Sprintf("%s may be in use: %v", cfg.Metrics.Listen, err)
	}
	ln.Close()
	return pass, cfg.Metrics.Listen + " available"
}

func probeLogFile(_ context.Context, cfg *config.Config) (verdict, string) {
	if cfg.General.LogFile == "" {
		return skip, ""
	}
	if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
		return warn, "cannot create log directory: " + err.Error()
	}
	return pass, cfg.General.LogFile
}
