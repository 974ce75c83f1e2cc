package driver

import (
	"sync"

	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

// Group aggregates service handles so a single listener registration
// covers every member. Members are borrowed; the group never recycles them.
type Group struct {
	mu sync.Mutex

	members   []*Service
	listeners []*groupListener
	recycled  bool
}

// groupListener is one group-level registration and its per-member tokens,
// kept in member order.
type groupListener struct {
	token    Token
	listener *Listener
	regs     []memberReg
}

type memberReg struct {
	svc   *Service
	token Token
}

// NewGroup creates an empty group.
func NewGroup() *Group {
	return &Group{}
}

// AddService adds svc to the group and registers every group listener on
// it. If any registration fails, the ones already made on svc are undone
// and svc is not added.
func (g *Group) AddService(svc *Service) error {
	if g == nil || svc == nil {
		return wire.Errorf(wire.StatusNullPointer, "nil group or service")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.recycled {
		return wire.Errorf(wire.StatusInvalidObject, "group recycled")
	}
	if svc.Released() {
		return wire.Errorf(wire.StatusInvalidObject, "service %q released", svc.name)
	}
	for _, m := range g.members {
		if m == svc {
			return wire.Errorf(wire.StatusAlreadyExists, "service %q already in group", svc.name)
		}
	}

	toks := make([]Token, 0, len(g.listeners))
	for _, gl := range g.listeners {
		tok, err := svc.RegisterEventListener(gl.listener)
		if err != nil {
			for i := len(toks) - 1; i >= 0; i-- {
				_ = svc.UnregisterEventListener(toks[i])
			}
			return err
		}
		toks = append(toks, tok)
	}

	for i, gl := range g.listeners {
		gl.regs = append(gl.regs, memberReg{svc: svc, token: toks[i]})
	}
	g.members = append(g.members, svc)
	return nil
}

// RemoveService detaches the group listeners from svc and removes it from
// the group. The handle itself stays bound.
func (g *Group) RemoveService(svc *Service) error {
	if g == nil || svc == nil {
		return wire.Errorf(wire.StatusNullPointer, "nil group or service")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	idx := -1
	for i, m := range g.members {
		if m == svc {
			idx = i
			break
		}
	}
	if idx < 0 {
		return wire.Errorf(wire.StatusNotFound, "service %q not in group", svc.name)
	}

	for _, gl := range g.listeners {
		for i, r := range gl.regs {
			if r.svc == svc {
				// The member may have been recycled already, which
				// detached the listener.
				_ = svc.UnregisterEventListener(r.token)
				gl.regs = append(gl.regs[:i], gl.regs[i+1:]...)
				break
			}
		}
	}
	g.members = append(g.members[:idx], g.members[idx+1:]...)
	return nil
}

// RegisterListener registers l on every member. Either all members accept
// the listener or none keeps it: on failure, members that already
// accepted it are rolled back in reverse order.
func (g *Group) RegisterListener(l *Listener) (Token, error) {
	if g == nil {
		return 0, wire.Errorf(wire.StatusNullPointer, "nil group")
	}
	if l == nil || l.OnReceive == nil {
		return 0, wire.Errorf(wire.StatusInvalidParameter, "nil listener")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.recycled {
		return 0, wire.Errorf(wire.StatusInvalidObject, "group recycled")
	}
	for _, gl := range g.listeners {
		if gl.listener == l {
			return 0, wire.Errorf(wire.StatusAlreadyExists, "listener already registered on group")
		}
	}

	regs := make([]memberReg, 0, len(g.members))
	for _, svc := range g.members {
		tok, err := svc.RegisterEventListener(l)
		if err != nil {
			rollback(regs)
			return 0, err
		}
		regs = append(regs, memberReg{svc: svc, token: tok})
	}

	gl := &groupListener{token: nextToken(), listener: l, regs: regs}
	g.listeners = append(g.listeners, gl)
	return gl.token, nil
}

// UnregisterListener removes a group-level registration from every member.
func (g *Group) UnregisterListener(tok Token) error {
	if g == nil {
		return wire.Errorf(wire.StatusNullPointer, "nil group")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for i, gl := range g.listeners {
		if gl.token == tok {
			rollback(gl.regs)
			g.listeners = append(g.listeners[:i], g.listeners[i+1:]...)
			return nil
		}
	}
	return wire.Errorf(wire.StatusNotFound, "group listener token %d", tok)
}

// ListenerCount returns the number of group-level listeners.
func (g *Group) ListenerCount() int {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.listeners)
}

// ServiceCount returns the number of members.
func (g *Group) ServiceCount() int {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// Services returns the members in join order.
func (g *Group) Services() []*Service {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*Service, len(g.members))
	copy(out, g.members)
	return out
}

// Recycle removes the group's own registrations from all members and
// empties the group. Members are not recycled. It is safe to call on a nil
// or already recycled group.
func (g *Group) Recycle() {
	if g == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.recycled {
		return
	}
	for i := len(g.listeners) - 1; i >= 0; i-- {
		rollback(g.listeners[i].regs)
	}
	g.listeners = nil
	g.members = nil
	g.recycled = true
}

// rollback unregisters member registrations in reverse order.
func rollback(regs []memberReg) {
	for i := len(regs) - 1; i >= 0; i-- {
		_ = regs[i].svc.UnregisterEventListener(regs[i].token)
	}
}
