package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"rustyrefactor/internal/data/history"
	"rustyrefactor/internal/engine/cache"
)

type cacheLookup struct {
	Path          string       `json:"path"`
	Hit           bool         `json:"hit"`
	Entry         *cache.Entry `json:"entry,omitempty"`
	PayloadABytes int          `json:"payload_a_bytes"`
	PayloadBBytes int          `json:"payload_b_bytes"`
}

type putOptions struct {
	dataPath  string
	extraPath string
	toolchain string
	deps      []string
}

type statsView struct {
	Dir string `json:"dir"`
	cache.Stats
	HitRate float64 `json:"hit_rate"`
}

func runCacheGet(w io.Writer, a *app, path string, raw, asJSON bool) error {
	entry, err := a.cache.Get(path)
	if err != nil {
		return err
	}

	if raw {
		if entry == nil {
			return fmt.Errorf("no cached entry for %s", path)
		}
		_, err := w.Write(entry.PayloadA)
		return err
	}

	lookup := cacheLookup{Path: path, Hit: entry != nil, Entry: entry}
	if entry != nil {
		lookup.PayloadABytes = len(entry.PayloadA)
		lookup.PayloadBBytes = len(entry.PayloadB)
	}
	if asJSON {
		return writeJSON(w, lookup)
	}

	if entry == nil {
		fmt.Fprintln(w, dimStyle.Render("miss: "+path))
		return nil
	}

	deps := "none"
	if n := len(entry.Metadata.Dependencies); n > 0 {
		deps = fmt.Sprintf("%d", n)
	}
	fmt.Fprint(w, renderPairs("hit: "+path, [][2]string{
		{"Fingerprint", fmt.Sprintf("%016x", entry.ContentFingerprint)},
		{"Created", entry.CreatedAt.Local().Format(time.DateTime)},
		{"Toolchain", entry.Metadata.ToolchainVersion},
		{"Dependencies", deps},
		{"Payload A", formatBytes(uint64(lookup.PayloadABytes))},
		{"Payload B", formatBytes(uint64(lookup.PayloadBBytes))},
		{"Computed in", fmt.Sprintf("%dms", entry.Metadata.ComputationDurationMs)},
	}))
	return nil
}

func runCachePut(ctx context.Context, in io.Reader, w io.Writer, a *app, path string, opts putOptions) error {
	start := time.Now()

	payloadA, err := readPayload(in, opts.dataPath)
	if err != nil {
		return err
	}
	var payloadB []byte
	if opts.extraPath != "" {
		if payloadB, err = os.ReadFile(opts.extraPath); err != nil {
			return fmt.Errorf("read secondary payload: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	deps := make([]string, 0, len(opts.deps))
	for _, dep := range opts.deps {
		abs, err := filepath.Abs(dep)
		if err != nil {
			return fmt.Errorf("resolve dependency %s: %w", dep, err)
		}
		deps = append(deps, abs)
	}

	toolchain := opts.toolchain
	if toolchain == "" {
		toolchain = a.resolver.ToolchainVersion(ctx)
	}

	meta := cache.Metadata{
		ToolchainVersion:      toolchain,
		Dependencies:          deps,
		SourceMtime:           info.ModTime(),
		ComputationDurationMs: uint64(time.Since(start).Milliseconds()),
		SourceSizeBytes:       uint64(info.Size()),
	}
	if err := a.cache.Put(path, payloadA, payloadB, meta); err != nil {
		return err
	}

	fmt.Fprintf(w, "stored %s (%s)\n", path, formatBytes(uint64(len(payloadA)+len(payloadB))))
	return nil
}

func readPayload(in io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("read payload from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return data, nil
}

func runCacheList(w io.Writer, a *app, asJSON bool) error {
	entries := a.cache.Entries()
	if asJSON {
		return writeJSON(w, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, dimStyle.Render("cache is empty"))
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			string(e.Namespace),
			e.Path,
			formatBytes(e.StoredBytes),
			e.CreatedAt.Local().Format(time.DateTime),
			string(e.Key),
		})
	}
	fmt.Fprint(w, renderTable([]string{"NAMESPACE", "PATH", "STORED", "CREATED", "KEY"}, rows))
	return nil
}

func runCacheStats(w io.Writer, a *app, asJSON bool) error {
	stats := a.cache.Stats()
	if asJSON {
		return writeJSON(w, statsView{Dir: a.paths.CacheDir, Stats: stats, HitRate: stats.HitRate()})
	}

	rate := stats.HitRate()
	fmt.Fprint(w, renderPairs("Cache "+a.paths.CacheDir, [][2]string{
		{"Hits", fmt.Sprintf("%d", stats.Hits)},
		{"Misses", fmt.Sprintf("%d", stats.Misses)},
		{"Hit rate", hitRateStyle(rate).Render(formatPercent(rate))},
		{"Entries", fmt.Sprintf("%d", stats.EntryCount)},
		{"Size", formatBytes(stats.SizeBytes)},
	}))
	return nil
}

func runCacheHistory(w io.Writer, a *app, since, window time.Duration, asJSON bool) error {
	if a.historyErr != nil {
		return fmt.Errorf("history is unavailable: %w", a.historyErr)
	}
	if a.history == nil {
		return errors.New("history is disabled; set enabled = true in the [history] config section")
	}

	snapshots, err := a.history.LoadSnapshots(a.paths.ProjectRoot, time.Now().Add(-since))
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if len(snapshots) == 0 {
		if asJSON {
			return writeJSON(w, history.TrendReport{
				SchemaVersion: history.SchemaVersion,
				Workspace:     a.paths.ProjectRoot,
				Window:        window.String(),
				Points:        []history.TrendPoint{},
			})
		}
		fmt.Fprintln(w, dimStyle.Render("no history recorded for "+a.paths.ProjectRoot))
		return nil
	}

	report, err := history.BuildTrendReport(a.paths.ProjectRoot, snapshots, window)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, report)
	}

	rows := make([][]string, 0, len(report.Points))
	for _, p := range report.Points {
		rows = append(rows, []string{
			p.Timestamp.Local().Format(time.DateTime),
			formatPercent(p.HitRate),
			formatPercent(p.AvgHitRate),
			formatBytes(p.SizeBytes),
			fmt.Sprintf("%+d", p.DeltaSizeBytes),
			fmt.Sprintf("%d", p.EntryCount),
			fmt.Sprintf("%+d", p.DeltaEntries),
		})
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Cache history %s (%d snapshots, %s window)",
		report.Workspace, report.SnapshotCount, report.Window)))
	fmt.Fprint(w, renderTable([]string{"TIME", "HIT RATE", "AVG", "SIZE", "Δ SIZE", "ENTRIES", "Δ ENTRIES"}, rows))
	return nil
}
