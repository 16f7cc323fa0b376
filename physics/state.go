package physics

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/softbody"
)

type BodyState struct {
	ID              string    `json:"id"`
	Type            BodyType  `json:"type"`
	Mass            float64   `json:"mass"`
	Position        cp.Vector `json:"position"`
	Angle           float64   `json:"angle"`
	Velocity        cp.Vector `json:"velocity"`
	AngularVelocity float64   `json:"angular_velocity"`
}

// Sleeping reports whether the body is dormant.
func (s BodyState) Sleeping() bool {
	return s.Type == Dormant
}

// SoftBodyState carries particle positions plus the best-fit rigid
// transform of the body relative to its rest shape. Torn lists the
// constraints that broke on this frame.
type SoftBodyState struct {
	ID        string          `json:"id"`
	Particles []cp.Vector     `json:"particles"`
	Torn      []softbody.Torn `json:"torn,omitempty"`
	Centroid  cp.Vector       `json:"centroid"`
	Angle     float64         `json:"angle"`
	Scale     cp.Vector       `json:"scale"`
}

type BoneState struct {
	Name     string    `json:"name"`
	Body     string    `json:"body"`
	Position cp.Vector `json:"position"`
	Angle    float64   `json:"angle"`
	Velocity cp.Vector `json:"velocity"`
}

type RagdollState struct {
	ID    string      `json:"id"`
	Bones []BoneState `json:"bones"`
}

// Bone finds a bone by name.
func (s RagdollState) Bone(name string) (BoneState, bool) {
	for _, b := range s.Bones {
		if b.Name == name {
			return b, true
		}
	}
	return BoneState{}, false
}

// Diagnostics describe how well the solver converged. They are never
// errors.
type Diagnostics struct {
	Contacts           int     `json:"contacts"`
	Joints             int     `json:"joints"`
	UnresolvedContacts int     `json:"unresolved_contacts"`
	MaxPenetration     float64 `json:"max_penetration"`
}

// State is the read-only result of a step.
type State struct {
	Frame       int             `json:"frame"`
	Time        float64         `json:"time"`
	Bodies      []BodyState     `json:"bodies"`
	SoftBodies  []SoftBodyState `json:"soft_bodies,omitempty"`
	Ragdolls    []RagdollState  `json:"ragdolls,omitempty"`
	Contacts    []ContactInfo   `json:"contacts,omitempty"`
	Events      []Event         `json:"events,omitempty"`
	Diagnostics Diagnostics     `json:"diagnostics"`
}

func (s *State) Body(id string) (BodyState, bool) {
	for _, b := range s.Bodies {
		if b.ID == id {
			return b, true
		}
	}
	return BodyState{}, false
}

func (s *State) SoftBody(id string) (SoftBodyState, bool) {
	for _, b := range s.SoftBodies {
		if b.ID == id {
			return b, true
		}
	}
	return SoftBodyState{}, false
}

func (s *State) Ragdoll(id string) (RagdollState, bool) {
	for _, r := range s.Ragdolls {
		if r.ID == id {
			return r, true
		}
	}
	return RagdollState{}, false
}

// EventsOf returns the events of one kind.
func (s *State) EventsOf(kind EventKind) []Event {
	var out []Event
	for _, e := range s.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Digest hashes the frame and the exact bits of every body, particle and
// bone pose. Two runs that diverge anywhere get different digests.
func (s *State) Digest() uint64 {
	d := digester{h: xxhash.New()}
	d.writeInt(s.Frame)
	for _, b := range s.Bodies {
		d.writeString(b.ID)
		d.writeInt(int(b.Type))
		d.writeVec(b.Position)
		d.writeFloat(b.Angle)
		d.writeVec(b.Velocity)
		d.writeFloat(b.AngularVelocity)
	}
	for _, sb := range s.SoftBodies {
		d.writeString(sb.ID)
		for _, p := range sb.Particles {
			d.writeVec(p)
		}
		d.writeInt(len(sb.Torn))
	}
	for _, r := range s.Ragdolls {
		d.writeString(r.ID)
		for _, b := range r.Bones {
			d.writeString(b.Name)
			d.writeVec(b.Position)
			d.writeFloat(b.Angle)
		}
	}
	return d.h.Sum64()
}

type digester struct {
	h   *xxhash.Digest
	buf [8]byte
}

func (d *digester) writeInt(v int) {
	binary.LittleEndian.PutUint64(d.buf[:], uint64(v))
	d.h.Write(d.buf[:])
}

func (d *digester) writeFloat(v float64) {
	binary.LittleEndian.PutUint64(d.buf[:], math.Float64bits(v))
	d.h.Write(d.buf[:])
}

func (d *digester) writeVec(v cp.Vector) {
	d.writeFloat(v.X)
	d.writeFloat(v.Y)
}

func (d *digester) writeString(s string) {
	d.h.WriteString(s)
	d.h.Write([]byte{0})
}

func bodyState(b *RigidBody) BodyState {
	return BodyState{
		ID:              b.ID,
		Type:            b.Type,
		Mass:            b.Mass,
		Position:        b.Position,
		Angle:           b.Angle,
		Velocity:        b.Velocity,
		AngularVelocity: b.AngularVelocity,
	}
}

func softBodyState(b *softbody.Body, frame int) SoftBodyState {
	centroid, angle, scale := b.Transform()
	out := SoftBodyState{
		ID:        b.ID,
		Particles: make([]cp.Vector, len(b.Particles)),
		Torn:      b.TornAt(frame),
		Centroid:  centroid,
		Angle:     angle,
		Scale:     scale,
	}
	for i, p := range b.Particles {
		out.Particles[i] = p.Position
	}
	return out
}

// State reports the world as of the current frame. Contacts and events are
// those of the last step.
func (w *World) State() *State {
	s := &State{
		Frame:       w.frame,
		Time:        w.Time(),
		Bodies:      make([]BodyState, 0, w.bodies.Len()),
		Contacts:    append([]ContactInfo(nil), w.lastContacts...),
		Events:      append([]Event(nil), w.lastEvents...),
		Diagnostics: w.diagnostics,
	}
	for _, b := range w.bodies.Items() {
		if b.Type != Dead {
			s.Bodies = append(s.Bodies, bodyState(b))
		}
	}
	for _, rec := range w.softs.Items() {
		s.SoftBodies = append(s.SoftBodies, softBodyState(rec.body, w.frame))
	}
	for _, rec := range w.ragdolls.Items() {
		s.Ragdolls = append(s.Ragdolls, w.ragdollState(rec))
	}
	return s
}
