package room

import (
	"context"
	"sync"
)

// Hub is the in-process reference transport: all conns in one process share
// one text buffer and one awareness map. It honors the Provider contract so
// sessions and tests run without a network transport.
type Hub struct {
	mu           sync.Mutex
	text         []rune
	states       map[int]UserState
	nextClientID int

	nextSubID int
	textSubs  map[int]func()
	awareSubs map[int]func()
}

func NewHub() *Hub {
	return &Hub{
		states:    make(map[int]UserState),
		textSubs:  make(map[int]func()),
		awareSubs: make(map[int]func()),
	}
}

func (h *Hub) Connect(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	clientID := h.nextClientID
	h.nextClientID++
	h.mu.Unlock()
	return &hubConn{hub: h, clientID: clientID}, nil
}

func (h *Hub) fireText() {
	h.mu.Lock()
	subs := make([]func(), 0, len(h.textSubs))
	for _, fn := range h.textSubs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func (h *Hub) fireAwareness() {
	h.mu.Lock()
	subs := make([]func(), 0, len(h.awareSubs))
	for _, fn := range h.awareSubs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

type hubConn struct {
	hub      *Hub
	clientID int
}

func (c *hubConn) Text() Text           { return &hubText{hub: c.hub} }
func (c *hubConn) Awareness() Awareness { return &hubAwareness{hub: c.hub, clientID: c.clientID} }

func (c *hubConn) Close() error {
	c.hub.mu.Lock()
	_, present := c.hub.states[c.clientID]
	delete(c.hub.states, c.clientID)
	c.hub.mu.Unlock()
	if present {
		c.hub.fireAwareness()
	}
	return nil
}

type hubText struct {
	hub *Hub
}

func (t *hubText) Insert(pos int, s string) {
	if s == "" {
		return
	}
	t.hub.mu.Lock()
	runes := []rune(s)
	if pos < 0 {
		pos = 0
	}
	if pos > len(t.hub.text) {
		pos = len(t.hub.text)
	}
	t.hub.text = append(t.hub.text[:pos:pos], append(runes, t.hub.text[pos:]...)...)
	t.hub.mu.Unlock()
	t.hub.fireText()
}

func (t *hubText) Delete(pos, n int) {
	t.hub.mu.Lock()
	if pos < 0 {
		pos = 0
	}
	if pos >= len(t.hub.text) || n <= 0 {
		t.hub.mu.Unlock()
		return
	}
	end := pos + n
	if end > len(t.hub.text) {
		end = len(t.hub.text)
	}
	t.hub.text = append(t.hub.text[:pos:pos], t.hub.text[end:]...)
	t.hub.mu.Unlock()
	t.hub.fireText()
}

func (t *hubText) Len() int {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	return len(t.hub.text)
}

func (t *hubText) String() string {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	return string(t.hub.text)
}

func (t *hubText) OnUpdate(fn func()) (cancel func()) {
	t.hub.mu.Lock()
	id := t.hub.nextSubID
	t.hub.nextSubID++
	t.hub.textSubs[id] = fn
	t.hub.mu.Unlock()
	return func() {
		t.hub.mu.Lock()
		delete(t.hub.textSubs, id)
		t.hub.mu.Unlock()
	}
}

type hubAwareness struct {
	hub      *Hub
	clientID int
}

func (a *hubAwareness) SetLocalState(state UserState) {
	a.hub.mu.Lock()
	a.hub.states[a.clientID] = state
	a.hub.mu.Unlock()
	a.hub.fireAwareness()
}

func (a *hubAwareness) ClearLocalState() {
	a.hub.mu.Lock()
	delete(a.hub.states, a.clientID)
	a.hub.mu.Unlock()
	a.hub.fireAwareness()
}

func (a *hubAwareness) States() map[int]UserState {
	a.hub.mu.Lock()
	defer a.hub.mu.Unlock()
	out := make(map[int]UserState, len(a.hub.states))
	for id, state := range a.hub.states {
		out[id] = state
	}
	return out
}

func (a *hubAwareness) OnChange(fn func()) (cancel func()) {
	a.hub.mu.Lock()
	id := a.hub.nextSubID
	a.hub.nextSubID++
	a.hub.awareSubs[id] = fn
	a.hub.mu.Unlock()
	return func() {
		a.hub.mu.Lock()
		delete(a.hub.awareSubs, id)
		a.hub.mu.Unlock()
	}
}
