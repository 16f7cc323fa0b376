package physics

import (
	"fmt"

	"github.com/milk9111/motionsim/ragdoll"
	"github.com/milk9111/motionsim/shape"
	"go.uber.org/zap"
)

// RagdollBodyID is the id of the rigid body built for a ragdoll bone.
func RagdollBodyID(ragdollID, bone string) string {
	return ragdollID + "/" + bone
}

// AddRagdoll builds the ragdoll's bones as capsule bodies linked by limited
// pivot joints. Nothing is registered unless every part is valid.
func (w *World) AddRagdoll(cfg ragdoll.Config) error {
	plan, err := ragdoll.Build(cfg)
	if err != nil {
		w.logger.Warn("rejected ragdoll", zap.String("ragdoll", cfg.ID), zap.Error(err))
		return fmt.Errorf("physics: ragdoll %q: %w", cfg.ID, err)
	}
	if w.taken(cfg.ID) {
		return fmt.Errorf("physics: ragdoll %q: %w", cfg.ID, ErrDuplicateID)
	}

	material := shape.DefaultMaterial()
	if cfg.Material != nil {
		material = *cfg.Material
	}
	filter := cfg.Filter.Normalized()
	group := w.nextGroup
	if !plan.SelfCollision {
		filter.Group = group
	}

	rec := &ragdollRecord{id: cfg.ID}
	configs := make([]RigidBodyConfig, len(plan.Bones))
	for i, bone := range plan.Bones {
		id := RagdollBodyID(cfg.ID, bone.Name)
		if w.taken(id) {
			return fmt.Errorf("physics: ragdoll %q: body %q: %w", cfg.ID, id, ErrDuplicateID)
		}
		configs[i] = RigidBodyConfig{
			ID:       id,
			Type:     Dynamic,
			Mass:     bone.Mass,
			Position: bone.Center,
			Angle:    bone.Angle,
			Shape:    boneShape(bone),
			Material: material,
			Filter:   filter,
		}
		if err := configs[i].Validate(); err != nil {
			return fmt.Errorf("physics: ragdoll %q: bone %q: %w", cfg.ID, bone.Name, err)
		}
		rec.bones = append(rec.bones, bone.Name)
		rec.bodies = append(rec.bodies, id)
	}

	bodies := make([]*RigidBody, len(configs))
	for i, c := range configs {
		bodies[i] = newRigidBody(c)
	}
	joints := make([]*joint, len(plan.Links))
	for i, link := range plan.Links {
		parent, child := bodies[link.Parent], bodies[link.Child]
		jc := JointConfig{
			ID:           RagdollBodyID(cfg.ID, plan.Bones[link.Child].Name) + "/joint",
			Kind:         PivotJoint,
			BodyA:        parent.ID,
			BodyB:        child.ID,
			LocalAnchorA: parent.LocalPoint(link.Anchor),
			LocalAnchorB: child.LocalPoint(link.Anchor),
			Pivot: &PivotParams{
				EnableLimit: true,
				LowerAngle:  link.LowerLimit,
				UpperAngle:  link.UpperLimit,
				Stiffness:   link.SpringStiffness,
				Damping:     link.SpringDamping,
			},
		}
		if w.taken(jc.ID) {
			return fmt.Errorf("physics: ragdoll %q: joint %q: %w", cfg.ID, jc.ID, ErrDuplicateID)
		}
		solver, err := newJointSolver(jc, parent, child)
		if err != nil {
			return fmt.Errorf("physics: ragdoll %q: %w", cfg.ID, err)
		}
		joints[i] = &joint{cfg: jc, a: parent, b: child, solver: solver}
		rec.joints = append(rec.joints, jc.ID)
	}

	for _, b := range bodies {
		w.bodies.Insert(b.ID, b)
	}
	for _, j := range joints {
		w.joints.Insert(j.cfg.ID, j)
	}
	w.ragdolls.Insert(cfg.ID, rec)
	if !plan.SelfCollision {
		w.nextGroup--
	}
	w.logger.Debug("added ragdoll", zap.String("ragdoll", cfg.ID), zap.Int("bones", len(bodies)), zap.Int("joints", len(joints)))
	return nil
}

// boneShape is a capsule spanning the bone, or a circle when the bone is
// no longer than it is wide.
func boneShape(b ragdoll.BonePlan) shape.Shape {
	radius := b.Width / 2
	if length := b.Length - b.Width; length > 0 {
		return shape.NewCapsule(length, radius)
	}
	return shape.NewCircle(radius)
}

func (w *World) ragdollState(rec *ragdollRecord) RagdollState {
	out := RagdollState{ID: rec.id, Bones: make([]BoneState, 0, len(rec.bones))}
	for i, name := range rec.bones {
		b, ok := w.bodies.Get(rec.bodies[i])
		if !ok || b.Type == Dead {
			continue
		}
		out.Bones = append(out.Bones, BoneState{
			Name:     name,
			Body:     b.ID,
			Position: b.Position,
			Angle:    b.Angle,
			Velocity: b.Velocity,
		})
	}
	return out
}
