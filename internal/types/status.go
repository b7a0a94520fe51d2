package types

// UnknownLabel is the composite status label while no daemon session exists
const UnknownLabel = "unknown"

// DaemonReady is the daemon state in which job status is meaningful
const DaemonReady = "ready"

// Label prefixes keep the three state namespaces apart
const (
	CustomPrefix = "custom_"
	PrintPrefix  = "print_"
	DaemonPrefix = "klipper_"
)

// ConnectionState represents what the monitor knows about the daemon.
// The vocabulary of each field is owned by the daemon.
type ConnectionState struct {
	Connected bool
	// Daemon is the daemon state, e.g. "ready", "startup", "error", "shutdown"
	Daemon string
	// Print is the job state, e.g. "standby", "printing", "paused", "complete".
	// Only meaningful while Daemon == DaemonReady.
	Print string
	// Custom is an override pushed by the daemon through set_status_led
	Custom string
}

// Label derives the composite status label: custom > print (when ready) >
// daemon. Until the daemon has reported its state the label stays unknown.
func (s ConnectionState) Label() string {
	switch {
	case !s.Connected:
		return UnknownLabel
	case s.Custom != "":
		return CustomPrefix + s.Custom
	case s.Daemon == DaemonReady && s.Print != "":
		return PrintPrefix + s.Print
	case s.Daemon == "":
		return UnknownLabel
	default:
		return DaemonPrefix + s.Daemon
	}
}
