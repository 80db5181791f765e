// Package spawn launches and supervises guest child processes on behalf of
// the host facade.
//
// Full process-group termination is only guaranteed on Linux, where the
// spawner can rely on the operating system's job-control semantics to deliver
// signals to every member of the guest's process group. On macOS and Windows
// the package offers best-effort semantics: signals reach the direct child,
// but without kernel-enforced job control any grandchildren may remain
// running and must be cleaned up separately by the caller.
//
// On Windows, for example, the Stop and Kill routines in stop_windows.go send
// an interrupt and, if necessary, terminate only the top-level process.
// Ensuring that the entire tree exits would require additional tooling such
// as job objects or other host-specific integrations. Inherited IPC channels
// are likewise a Unix-only facility; see channel_windows.go.
package spawn
