// Package probe answers "is this thing alive?" for a target reference.
//
// DockerProbe asks the local Docker Engine API for a container's state over
// the unix socket (or a tcp:// endpoint). StaticProbe is a mutable in-memory
// fake used in demo mode and tests, mirroring the mock inventory the real
// deployment replaces.
package probe

import "context"

// StatusUnknown is the sentinel returned when a target cannot be probed.
// Callers treat it as "unreachable", never as an error.
const StatusUnknown = "unknown"

// Probe reports the coarse liveness status of one target. Implementations
// must return promptly; a stuck backend degrades to StatusUnknown via the
// caller's context deadline, it never hangs the monitor cycle.
type Probe interface {
	// Status returns a status string such as "running", "exited" or
	// "paused". An error means the target could not be inspected at all.
	Status(ctx context.Context, ref string) (string, error)
}
