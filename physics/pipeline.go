package physics

// stage is one phase of World.Step.
type stage interface {
	Update(w *World, dt float64)
}

type stageFunc func(w *World, dt float64)

func (f stageFunc) Update(w *World, dt float64) { f(w, dt) }

// pipeline runs stages in order.
type pipeline struct {
	stages []stage
}

func newPipeline(stages ...stage) *pipeline {
	copied := append([]stage(nil), stages...)
	return &pipeline{stages: copied}
}

func (p *pipeline) Update(w *World, dt float64) {
	for _, s := range p.stages {
		s.Update(w, dt)
	}
}

// defaultPipeline is the step order: forces into velocities, contacts,
// velocity iterations, position integration, position iterations, soft
// bodies, then bookkeeping.
func defaultPipeline() *pipeline {
	return newPipeline(
		stageFunc((*World).prepareBodies),
		stageFunc((*World).bindJoints),
		stageFunc((*World).applyForceFields),
		stageFunc((*World).integrateVelocities),
		stageFunc((*World).collide),
		stageFunc((*World).solveVelocities),
		stageFunc((*World).integratePositions),
		stageFunc((*World).solvePositions),
		stageFunc((*World).stepSoftBodies),
		stageFunc((*World).checkFinite),
		stageFunc((*World).breakJoints),
		stageFunc((*World).removeDead),
		stageFunc((*World).updateSleep),
	)
}
