package artwork

import "sync"

// squashLimit is the maximum membership of one SquashGroup.
const squashLimit = 50

// member is one callback waiting on a SquashGroup's eventual result.
type member struct {
	query    *Query
	callback func(*CoverInfo)
}

// squashGroup is a FIFO list of equivalent queries awaiting one
// broadcast result.
type squashGroup struct {
	head    *Query
	members []member
}

// squasher groups equivalent in-flight queries and broadcasts one
// result to every member, in submission order.
type squasher struct {
	mu     sync.Mutex
	groups []*squashGroup
}

func newSquasher() *squasher {
	return &squasher{}
}

// submit enrolls (q, cb) into an existing equivalent group if one exists
// and has room, or starts a new group. It returns the group so the
// caller can tell whether it must start a new fetch job (group was just
// created) or merely waits (absorbed into an existing one).
func (s *squasher) submit(q *Query, cb func(*CoverInfo)) (g *squashGroup, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.groups {
		if g.head.equivalent(q) && len(g.members) < squashLimit {
			g.members = append(g.members, member{query: q, callback: cb})
			return g, false
		}
	}

	g = &squashGroup{head: q}
	g.members = append(g.members, member{query: q, callback: cb})
	s.groups = append(s.groups, g)
	return g, true
}

// complete removes g from the pending list and invokes every member's
// callback, in submission order, with a +1 reference on ci per callback
//. ci may be nil (failure sentinel).
func (s *squasher) complete(g *squashGroup, ci *CoverInfo) {
	s.mu.Lock()
	for i, cand := range s.groups {
		if cand == g {
			s.groups = append(s.groups[:i], s.groups[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	for _, m := range g.members {
		if ci != nil {
			m.callback(ci.Retain())
		} else {
			m.callback(nil)
		}
	}
}

// pendingGroups returns the number of in-flight groups, for tests.
func (s *squasher) pendingGroups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.groups)
}
