package main

import (
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"idlc/internal/project"
	"idlc/internal/token"
)

const watchDebounce = 150 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch [flags] [entry...]",
	Short: "Rebuild whenever a schema changes",
	Long:  "Build once, then watch the project for changes to .thrift, .proto and idlc.toml files and rebuild incrementally in the same session.",
	RunE:  watchExecution,
}

func init() {
	addProjectFlags(watchCmd)
}

func watchExecution(cmd *cobra.Command, args []string) error {
	e, err := setupEnv(cmd, args)
	if err != nil {
		return err
	}
	defer e.Close()
	defer dumpTraceOnPanic(cmd, e.tracer)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watchTree(watcher, e.manifest.Root, e.manifest.Abs(e.manifest.Gen.OutDir)); err != nil {
		return err
	}
	e.log.Info().Str("root", e.manifest.Root).Msg("watching for changes")

	rebuild := func() {
		res, err := e.session.Compile(ctx)
		if err != nil {
			if ctx.Err() == nil {
				e.log.Error().Err(err).Msg("compilation aborted")
			}
			return
		}
		written := writeResult(cmd, e, res, false)
		// ошибки уже напечатаны, продолжаем следить
		_ = e.report(cmd, "built", res, written)
	}
	rebuild()

	pending := make(map[string]bool)
	manifestChanged := false
	timer := time.NewTimer(watchDebounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := watchTree(watcher, ev.Name, e.manifest.Abs(e.manifest.Gen.OutDir)); err != nil {
						e.log.Warn().Err(err).Str("dir", ev.Name).Msg("cannot watch directory")
					}
					continue
				}
			}
			if filepath.Base(ev.Name) == project.ManifestName {
				manifestChanged = true
				timer.Reset(watchDebounce)
				continue
			}
			if token.DialectFromPath(ev.Name) == token.DialectUnknown {
				continue
			}
			rel, err := filepath.Rel(e.manifest.Root, ev.Name)
			if err != nil {
				continue
			}
			e.log.Debug().Str("event", ev.Op.String()).Str("file", rel).Msg("source changed")
			pending[filepath.ToSlash(rel)] = true
			timer.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.log.Error().Err(err).Msg("file watcher error")

		case <-timer.C:
			if manifestChanged {
				manifestChanged = false
				if err := reloadManifest(cmd, args, e); err != nil {
					e.log.Error().Err(err).Msg("manifest reload failed, keeping the old settings")
				}
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			slices.Sort(changed)
			for _, p := range changed {
				if err := e.session.Refresh(p); err != nil {
					e.log.Warn().Err(err).Str("file", p).Msg("cannot refresh source")
				}
			}
			e.log.Info().Strs("files", changed).Msg("rebuilding")
			rebuild()
		}
	}
}

// watchTree adds dir and its subdirectories to w, skipping hidden
// directories and the output directory.
func watchTree(w *fsnotify.Watcher, dir, outDir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && (strings.HasPrefix(d.Name(), ".") || p == outDir) {
			return filepath.SkipDir
		}
		if err := w.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

func reloadManifest(cmd *cobra.Command, args []string, e *env) error {
	m, err := loadManifest(cmd, args)
	if err != nil {
		return err
	}
	if m.Root != e.manifest.Root {
		return fmt.Errorf("project root moved from %s to %s", e.manifest.Root, m.Root)
	}
	e.log.Info().Msg("manifest changed")
	return e.apply(m)
}
