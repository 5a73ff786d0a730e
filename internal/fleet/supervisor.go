package fleet

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"keel/internal/advisor"
)

// Supervisor owns the running advisor actors, keyed by address.
type Supervisor struct {
	deps advisor.Deps

	mu     sync.Mutex
	actors map[string]*advisor.Actor
}

func NewSupervisor(deps advisor.Deps) *Supervisor {
	return &Supervisor{
		deps:   deps,
		actors: make(map[string]*advisor.Actor),
	}
}

// StartResult counts the outcomes of one Start call.
type StartResult struct {
	New            int
	AlreadyRunning int
}

// Start launches an actor for each spec whose address is not already
// running.
func (s *Supervisor) Start(specs []advisor.Spec) (StartResult, error) {
	var res StartResult
	for _, spec := range specs {
		addr := spec.Address()

		s.mu.Lock()
		if _, running := s.actors[addr]; running {
			s.mu.Unlock()
			res.AlreadyRunning++
			continue
		}
		actor := advisor.NewActor(spec, s.deps)
		s.actors[addr] = actor
		s.mu.Unlock()

		if err := actor.Start(); err != nil {
			s.mu.Lock()
			delete(s.actors, addr)
			s.mu.Unlock()
			return res, err
		}
		res.New++
	}
	return res, nil
}

// Info pairs each spec with its running actor, or nil when stopped.
type Info struct {
	Spec  advisor.Spec
	Actor *advisor.Actor
}

func (s *Supervisor) Info(specs []advisor.Spec) []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Info, 0, len(specs))
	for _, spec := range specs {
		out = append(out, Info{Spec: spec, Actor: s.actors[spec.Address()]})
	}
	return out
}

// Running returns the addresses of all live actors.
func (s *Supervisor) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.actors))
	for addr := range s.actors {
		out = append(out, addr)
	}
	return out
}

// Terminate stops the actor at the given address. Idempotent: stopping an
// unknown address reports false and does nothing.
func (s *Supervisor) Terminate(addr string) bool {
	s.mu.Lock()
	actor, ok := s.actors[addr]
	if ok {
		delete(s.actors, addr)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	actor.Stop()
	return true
}

// StopAll terminates every running actor concurrently and returns how
// many were stopped.
func (s *Supervisor) StopAll() int {
	s.mu.Lock()
	actors := make([]*advisor.Actor, 0, len(s.actors))
	for _, a := range s.actors {
		actors = append(actors, a)
	}
	s.actors = make(map[string]*advisor.Actor)
	s.mu.Unlock()

	var g errgroup.Group
	for _, a := range actors {
		a := a
		g.Go(func() error {
			a.Stop()
			return nil
		})
	}
	_ = g.Wait()
	return len(actors)
}
