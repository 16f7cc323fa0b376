// Command bake simulates scene files and writes keyframe tracks as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/milk9111/motionsim/keyframe"
	"github.com/milk9111/motionsim/logging"
	"github.com/milk9111/motionsim/prefabs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	scenes := flag.String("scene", "dominoes.yaml", "comma separated scene files (disk path or embedded name)")
	target := flag.String("target", "", "comma separated layer ids to export (default: every layer)")
	start := flag.Int("start", 0, "first exported frame")
	end := flag.Int("end", 0, "last exported frame (default: composition frames)")
	step := flag.Int("step", 1, "frame step between samples")
	props := flag.String("props", "position,rotation,scale", "comma separated properties")
	simplify := flag.Bool("simplify", false, "drop keys within -tolerance of the interpolated curve")
	tolerance := flag.Float64("tolerance", 0.5, "simplification tolerance in value units")
	interp := flag.String("interp", "linear", "key interpolation: linear or bezier")
	out := flag.String("out", "", "output directory (default: stdout)")
	cacheOut := flag.Bool("cache", false, "also write the simulation cache blob (needs -out)")
	watch := flag.Bool("watch", false, "re-bake when scene or script files change")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	snapshotEvery := flag.Int("snapshot-every", 30, "frames between cache snapshots")
	flag.Parse()

	logger, err := logging.New(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	cfg := bakeConfig{
		Targets: splitList(*target),
		Export: keyframe.Options{
			Start:         *start,
			End:           *end,
			Step:          *step,
			Properties:    parseProperties(*props),
			Simplify:      *simplify,
			Tolerance:     *tolerance,
			Interpolation: keyframe.Interpolation(*interp),
		},
		SnapshotEvery: *snapshotEvery,
		OutDir:        *out,
		WriteCache:    *cacheOut && *out != "",
	}
	paths := splitList(*scenes)
	if len(paths) == 0 {
		logger.Fatal("no scene given")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := &runner{logger: logger, cfg: cfg}
	if err := r.bakeAll(ctx, paths); err != nil {
		logger.Error("bake failed", zap.Error(err))
		if !*watch {
			os.Exit(1)
		}
	}
	if *watch {
		if err := r.watch(ctx, paths); err != nil {
			logger.Fatal("watch failed", zap.Error(err))
		}
	}
}

type runner struct {
	logger *zap.Logger
	cfg    bakeConfig
	// outMu serialises stdout documents from parallel bakes.
	outMu sync.Mutex
}

// bakeAll bakes the scenes in parallel. The first failure cancels the
// rest.
func (r *runner) bakeAll(ctx context.Context, paths []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, path := range paths {
		g.Go(func() error {
			res, blob, err := bake(gctx, r.logger, path, r.cfg)
			if err != nil {
				return err
			}
			return r.emit(res, blob)
		})
	}
	return g.Wait()
}

func (r *runner) emit(res *result, blob []byte) error {
	doc, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", res.Scene, err)
	}
	if r.cfg.OutDir != "" {
		return writeOutputs(r.cfg.OutDir, res, doc, blob)
	}
	r.outMu.Lock()
	defer r.outMu.Unlock()
	_, err = fmt.Fprintf(os.Stdout, "%s\n", doc)
	return err
}

// watch re-bakes a scene when its file changes, and every scene when a
// strength script changes.
func (r *runner) watch(ctx context.Context, paths []string) error {
	dirs := map[string]bool{}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			dirs[filepath.Dir(p)] = true
		}
	}
	if _, err := os.Stat(filepath.Join("prefabs", "scripts")); err == nil {
		dirs[filepath.Join("prefabs", "scripts")] = true
	}
	if len(dirs) == 0 {
		return fmt.Errorf("none of the scenes are files on disk")
	}
	list := make([]string, 0, len(dirs))
	for d := range dirs {
		list = append(list, d)
	}

	w, err := prefabs.NewWatcher(r.logger, list...)
	if err != nil {
		return err
	}
	defer w.Close()
	r.logger.Info("watching", zap.Strings("dirs", list))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watch error", zap.Error(err))
		case change, ok := <-w.Events:
			if !ok {
				return nil
			}
			todo := paths
			if change.Kind == prefabs.SceneChanged {
				todo = matching(paths, change.Path)
			}
			if len(todo) == 0 {
				continue
			}
			r.logger.Info("rebaking", zap.String("changed", change.Path), zap.Strings("scenes", todo))
			if err := r.bakeAll(ctx, todo); err != nil {
				r.logger.Error("bake failed", zap.Error(err))
			}
		}
	}
}

// matching returns the scene paths that name the same file as changed.
func matching(paths []string, changed string) []string {
	want, err := filepath.Abs(changed)
	if err != nil {
		return nil
	}
	var out []string
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil && abs == want {
			out = append(out, p)
		}
	}
	return out
}
