// Package realtime delivers events to connected clients keyed by user id.
// The messaging service depends only on the Publisher interface, so the
// transport behind it is swappable (in-process hub, Redis fan-out, or a fake
// in tests).
package realtime

type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

type Publisher interface {
	// Publish is fire-and-forget: it never blocks and never fails the caller.
	Publish(userID string, ev Event)
}
