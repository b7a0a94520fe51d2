// Package metrics exposes the bridge's runtime counters. Components take a
// Recorder so that metrics stay optional.
package metrics

// Recorder defines the observability hooks used by the monitor and renderer.
// Implementations must be safe for concurrent use.
type Recorder interface {
	SetInFlight(n int)
	IncRequest(method string)
	IncResponse(id string)
	IncNotification(action string)
	IncMalformed()
	IncReconnect()
	SetLabel(label string, changed bool)
	IncCommit()
	IncSuppressed()
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) SetInFlight(int)        {}
func (NoopRecorder) IncRequest(string)      {}
func (NoopRecorder) IncResponse(string)     {}
func (NoopRecorder) IncNotification(string) {}
func (NoopRecorder) IncMalformed()          {}
func (NoopRecorder) IncReconnect()          {}
func (NoopRecorder) SetLabel(string, bool)  {}
func (NoopRecorder) IncCommit()             {}
func (NoopRecorder) IncSuppressed()         {}
