// Package room is the boundary to the replication transport. The live
// document and the presence map are owned by the transport; everything here
// is specified at the interface and the merge algorithm itself is external.
package room

import "context"

// UserState is the display metadata a session broadcasts about itself.
type UserState struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Provider opens connections to a shared editing room.
type Provider interface {
	Connect(ctx context.Context) (Conn, error)
}

// Conn is one session's connection to the room.
type Conn interface {
	Text() Text
	Awareness() Awareness
	Close() error
}

// Text is the shared mutable text handle. Any connected participant may
// mutate it at any time; no caller may assume exclusive write access.
type Text interface {
	Insert(pos int, s string)
	Delete(pos, n int)
	Len() int
	String() string
	// OnUpdate registers a callback fired after every text mutation,
	// local or remote. The returned func cancels the registration.
	OnUpdate(fn func()) (cancel func())
}

// Awareness is the presence-state map, keyed by opaque peer handle.
type Awareness interface {
	SetLocalState(state UserState)
	ClearLocalState()
	// States returns the current peer states. Peer handles increase in
	// join order.
	States() map[int]UserState
	OnChange(fn func()) (cancel func())
}
