package app

// State is the boot phase of an Orchestrator.
type State int

const (
	Unconfigured State = iota
	ConfiguringSupport
	ConfiguringApplication
	Running
	ShuttingDown
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case ConfiguringSupport:
		return "configuring_support"
	case ConfiguringApplication:
		return "configuring_application"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
