package scene

// A world holds the set of shapes visible to ray queries together with
// the options consumed by the intersection strategies.
type World struct {
	Shapes  []Shape
	Options Options

	hasChanged  bool
	stateChange StateChange
}

// Create a new empty world.
func NewWorld() *World {
	return &World{
		// A fresh world counts as changed so that the first
		// preprocess call always builds.
		hasChanged: true,
	}
}

// Attach a shape to the world. Attached shapes report their state
// changes to the world until detached.
func (w *World) AttachShape(s Shape) {
	switch shape := s.(type) {
	case *Mesh:
		shape.world = w
	case *Instance:
		shape.world = w
	}
	w.Shapes = append(w.Shapes, s)
	w.hasChanged = true
}

// Detach a shape from the world.
func (w *World) DetachShape(s Shape) {
	for i, shape := range w.Shapes {
		if shape == s {
			w.Shapes = append(w.Shapes[:i], w.Shapes[i+1:]...)
			w.hasChanged = true
			break
		}
	}
	switch shape := s.(type) {
	case *Mesh:
		shape.world = nil
	case *Instance:
		shape.world = nil
	}
}

// Check whether the shape set has changed since the last commit.
func (w *World) HasChanged() bool {
	return w.hasChanged
}

// Get the accumulated shape-level state change mask.
func (w *World) StateChange() StateChange {
	return w.stateChange
}

// Acknowledge all pending changes. Called by strategies after a
// successful preprocess.
func (w *World) ClearChanges() {
	w.hasChanged = false
	w.stateChange = StateChangeNone
}

func (w *World) raiseStateChange(change StateChange) {
	w.stateChange |= change
}
