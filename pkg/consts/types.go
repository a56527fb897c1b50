package consts

import "time"

// ProcessState defines the lifecycle state of the recognizer worker as seen
// by the orchestrator.
type ProcessState string

const (
	StatePending  ProcessState = "PENDING"
	StateChecking ProcessState = "CHECKING" // Model prerequisites
	StateStarting ProcessState = "STARTING" // Worker launched, waiting for readiness
	StateServing  ProcessState = "SERVING"  // Readiness handshake completed
	StateDraining ProcessState = "DRAINING" // Graceful stop in progress
	StateStopped  ProcessState = "STOPPED"
	StateFailed   ProcessState = "FAILED"
)

// Worker handshake environment. The worker reads these to locate its
// inherited channels and the shared connection registry.
const (
	EnvChannelFDs   = "AURIS_CHANNEL_FDS" // Count of FDs passed (inbound, outbound)
	EnvRegistryPath = "AURIS_REGISTRY_PATH"
	EnvStartMethod  = "AURIS_START_METHOD" // Fixes the process-wide start method
	EnvAttemptID    = "AURIS_ATTEMPT_ID"
)

// Child-side descriptor numbers. ExtraFiles start at fd 3.
const (
	InboundFD  = 3
	OutboundFD = 4
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultDrainTimeout = 5 * time.Second
	DefaultRegistryFile = "auris-connections.db"
)

// Personal.AI order the ending
