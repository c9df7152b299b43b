package loader

// State is a state of the boot sequence.
type State int

// Boot sequence states.
const (
	StateInit State = iota
	StateDiskRead
	StateDecode
	StateExec
	StateError
)

var stateNames = map[State]string{
	StateInit:     "init",
	StateDiskRead: "disk read",
	StateDecode:   "decode",
	StateExec:     "exec",
	StateError:    "error",
}

func (s State) String() string {
	name, ok := stateNames[s]
	if !ok {
		return "unknown"
	}
	return name
}

// Terminal returns whether the boot sequence can not leave the state.
func (s State) Terminal() bool {
	return s == StateExec || s == StateError
}

// Stage is a transition of the boot sequence that is reported to the observer.
type Stage int

// Reported stages.
const (
	StageInitDone Stage = iota
	StageDiskReadDone
	StageDecodeDone
	StageError
)

// Char returns the character the boot sector prints for the stage when
// built with debug output.
func (s Stage) Char() byte {
	switch s {
	case StageInitDone:
		return 'I'
	case StageDiskReadDone:
		return 'R'
	case StageDecodeDone:
		return 'D'
	default:
		return 'E'
	}
}

func (s Stage) String() string {
	switch s {
	case StageInitDone:
		return "init done"
	case StageDiskReadDone:
		return "disk read done"
	case StageDecodeDone:
		return "decode done"
	default:
		return "error"
	}
}

// Observer is called at every reported stage transition.
type Observer func(stage Stage)

// NopObserver ignores all stages.
func NopObserver(Stage) {}

// TeletypeObserver returns an observer that prints the stage characters
// through the given output function, mirroring the boot sector debug output.
func TeletypeObserver(output func(char byte)) Observer {
	return func(stage Stage) {
		output(stage.Char())
	}
}
