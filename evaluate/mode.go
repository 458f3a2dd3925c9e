package evaluate

import "fmt"

// Mode is one operating regime of the evaluation pipeline
type Mode int

const (
	ModeTeacherForcedTrain Mode = iota
	ModeTeacherForcedTest
	ModeFreeRunning
)

// Modes lists the regimes in the order Run visits them. Free running comes
// last because its samples feed the standalone scoring passes.
var Modes = []Mode{ModeTeacherForcedTrain, ModeTeacherForcedTest, ModeFreeRunning}

func (m Mode) String() string {
	switch m {
	case ModeTeacherForcedTrain:
		return "train"
	case ModeTeacherForcedTest:
		return "test"
	case ModeFreeRunning:
		return "free_running"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// TeacherForced reports whether ground-truth tokens are fed at every step
func (m Mode) TeacherForced() bool {
	return m != ModeFreeRunning
}
