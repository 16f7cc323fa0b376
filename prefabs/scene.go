package prefabs

import (
	"errors"
	"fmt"

	"github.com/milk9111/motionsim/collision"
	"github.com/milk9111/motionsim/common"
	"github.com/milk9111/motionsim/physics"
	"github.com/milk9111/motionsim/shape"
	"github.com/milk9111/motionsim/softbody"
	"go.uber.org/zap"
)

// Build creates a world from the scene. Every field, layer and joint is
// attempted; the failures are joined and no world is returned if any
// occurred.
func (s *Scene) Build(logger *zap.Logger) (*physics.World, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	comp := s.Composition
	logger = logger.With(zap.String("composition", comp.ID))

	w, err := physics.NewWorld(comp.Space, physics.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("prefabs: composition %q: %w", comp.ID, err)
	}

	var errs []error
	for _, f := range comp.Fields {
		if script, ok := comp.StrengthScripts[f.ID]; ok {
			src, err := LoadScript(script)
			if err != nil {
				errs = append(errs, fmt.Errorf("prefabs: field %q: load script %s: %w", f.ID, script, err))
				continue
			}
			f.StrengthExpr = string(src)
		}
		if err := w.AddForceField(f); err != nil {
			errs = append(errs, err)
		}
	}
	for _, l := range s.Layers {
		if err := addLayer(w, comp, l); err != nil {
			logger.Warn("layer rejected", zap.String("layer", l.ID), zap.Error(err))
			errs = append(errs, err)
		}
	}
	for _, j := range s.Joints {
		if err := w.AddJoint(j); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	logger.Info("scene built",
		zap.Int("layers", len(s.Layers)),
		zap.Int("joints", len(s.Joints)),
		zap.Int("fields", len(comp.Fields)),
	)
	return w, nil
}

func addLayer(w *physics.World, comp CompositionData, l LayerData) error {
	wrap := func(err error) error { return fmt.Errorf("prefabs: layer %q: %w", l.ID, err) }
	if l.ID == "" {
		return wrap(common.Invalid("layer.id", l.ID, "must not be empty"))
	}
	if n := l.payloads(); n != 1 {
		return wrap(common.Invalid("layer", n, "exactly one body payload must be set"))
	}
	var filter *collision.Filter
	if l.Group != "" {
		f, ok := comp.Groups[l.Group]
		if !ok {
			return wrap(common.Invalid("layer.group", l.Group, "unknown collision group"))
		}
		filter = &f
	}
	if l.Space != nil && l.Space.Gravity != nil && l.RigidBody == nil {
		return wrap(common.Invalid("layer.space", l.ID, "gravity override needs a rigid body"))
	}

	switch {
	case l.RigidBody != nil:
		cfg := *l.RigidBody
		cfg.ID = l.ID
		if cfg.Material == (shape.Material{}) {
			cfg.Material = shape.DefaultMaterial()
		}
		if filter != nil {
			cfg.Filter = *filter
		}
		if l.Space != nil && l.Space.Gravity != nil {
			g := *l.Space.Gravity
			cfg.Gravity = &g
		}
		return w.AddRigidBody(cfg)
	case l.SoftBody != nil:
		cfg := *l.SoftBody
		cfg.ID = l.ID
		if filter != nil {
			cfg.Filter = *filter
		}
		return w.AddSoftBody(cfg)
	case l.Cloth != nil:
		cfg := *l.Cloth
		cfg.ID = l.ID
		if filter != nil {
			cfg.Filter = *filter
		}
		return w.AddCloth(cfg)
	case l.Ring != nil:
		cfg := *l.Ring
		cfg.ID = l.ID
		sc, err := softbody.NewRing(cfg)
		if err != nil {
			return wrap(err)
		}
		sc.CollideRigid = true
		if filter != nil {
			sc.Filter = *filter
		}
		return w.AddSoftBody(sc)
	case l.Rope != nil:
		cfg := *l.Rope
		cfg.ID = l.ID
		sc, err := softbody.NewRope(cfg)
		if err != nil {
			return wrap(err)
		}
		sc.CollideRigid = true
		if filter != nil {
			sc.Filter = *filter
		}
		return w.AddSoftBody(sc)
	default:
		cfg := *l.Ragdoll
		cfg.ID = l.ID
		if filter != nil {
			cfg.Filter = *filter
		}
		return w.AddRagdoll(cfg)
	}
}
