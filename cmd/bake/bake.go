package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/milk9111/motionsim/keyframe"
	"github.com/milk9111/motionsim/prefabs"
	"github.com/milk9111/motionsim/simcache"
	"go.uber.org/zap"
)

// bakeConfig is what every bake job shares.
type bakeConfig struct {
	Targets       []string
	Export        keyframe.Options
	SnapshotEvery int
	// OutDir receives <composition>.json; empty writes to stdout.
	OutDir string
	// WriteCache also stores the simulation cache blob next to the keys.
	WriteCache bool
}

// result is the JSON document written for one baked scene.
type result struct {
	JobID         string              `json:"job_id"`
	Scene         string              `json:"scene"`
	CompositionID string              `json:"composition_id"`
	Start         int                 `json:"start"`
	End           int                 `json:"end"`
	CacheKey      string              `json:"cache_key"`
	Tracks        []keyframe.Exported `json:"tracks"`
}

// bake simulates one scene through a cache and exports the requested
// layers. Without explicit targets every layer is exported.
func bake(ctx context.Context, logger *zap.Logger, path string, cfg bakeConfig) (*result, []byte, error) {
	jobID := uuid.New()
	logger = logger.With(zap.String("scene", path), zap.Stringer("job", jobID))

	scene, err := prefabs.LoadScene(path)
	if err != nil {
		return nil, nil, err
	}
	w, err := scene.Build(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("bake %s: %w", path, err)
	}

	opts := cfg.Export
	if opts.End == 0 {
		opts.End = scene.Composition.Frames
	}
	if err := opts.Validate(); err != nil {
		return nil, nil, fmt.Errorf("bake %s: %w", path, err)
	}

	cache := simcache.New(w, simcache.Config{SnapshotEvery: cfg.SnapshotEvery, Logger: logger})
	defer cache.Close()
	cache.Prefetch(ctx, opts.End)

	targets := cfg.Targets
	explicit := len(targets) > 0
	if !explicit {
		for _, l := range scene.Layers {
			targets = append(targets, l.ID)
		}
	}

	res := &result{
		JobID:         jobID.String(),
		Scene:         path,
		CompositionID: scene.Composition.ID,
		Start:         opts.Start,
		End:           opts.End,
	}
	for _, target := range targets {
		tracks, err := keyframe.Export(ctx, cache, target, opts)
		if errors.Is(err, keyframe.ErrUnknownTarget) && !explicit {
			logger.Debug("layer skipped", zap.String("layer", target))
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("bake %s: %s: %w", path, target, err)
		}
		res.Tracks = append(res.Tracks, tracks...)
	}
	if err := cache.Wait(); err != nil {
		return nil, nil, fmt.Errorf("bake %s: %w", path, err)
	}

	key, blob, err := cache.Blob(scene.Composition.ID)
	if err != nil {
		return nil, nil, err
	}
	res.CacheKey = strconv.FormatUint(key, 16)
	if !cfg.WriteCache {
		blob = nil
	}

	status := cache.Status()
	logger.Info("scene baked",
		zap.Int("tracks", len(res.Tracks)),
		zap.Int("cached", status.Cached),
		zap.Int("snapshots", status.Snapshots),
		zap.String("cache_key", res.CacheKey),
	)
	return res, blob, nil
}

// writeOutputs stores a bake under OutDir as <composition>.json and, when
// set, <composition>.cache.json.
func writeOutputs(dir string, res *result, doc, blob []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	base := filepath.Join(dir, res.CompositionID)
	if err := os.WriteFile(base+".json", doc, 0o644); err != nil {
		return err
	}
	if blob != nil {
		return os.WriteFile(base+".cache.json", blob, 0o644)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseProperties(s string) []keyframe.Property {
	var out []keyframe.Property
	for _, p := range splitList(s) {
		out = append(out, keyframe.Property(strings.ToLower(p)))
	}
	return out
}
