package schema

// Event type constants published on the streaming hub and recorded in the journal.
const (
	EventStateChanged       = "state.changed"
	EventTransitionRejected = "transition.rejected"
	EventOutputsComputed    = "outputs.computed"
	EventNodeFailed         = "node.failed"
	EventSourcesChanged     = "sources.changed"
)
