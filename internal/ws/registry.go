package ws

import "sync"

// registry is the process-wide mapping from a project room key to the set of
// sessions subscribed to it. It is the single source of truth for "who is
// listening to project P" and the only shared mutable state crossing session
// boundaries.
type registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

// room holds one project's membership set together with the dispatch lock
// that serializes broadcasts to it.
type room struct {
	// dispatch is held for the duration of one broadcast's member pushes,
	// so no two broadcasts to the same room interleave.
	dispatch sync.Mutex
	members  map[*Session]struct{}
}

func newRegistry() *registry {
	return &registry{rooms: make(map[string]*room)}
}

// join adds s to the room for key, creating the room if absent.
// Joining a room the session is already a member of is a no-op.
func (r *registry) join(key string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[key]
	if !ok {
		rm = &room{members: make(map[*Session]struct{})}
		r.rooms[key] = rm
	}
	rm.members[s] = struct{}{}
}

// leave removes s from the room for key and reports whether it was a member.
// Rooms are pruned as soon as their last member leaves, so repeated
// connect/disconnect cycles never accumulate empty entries.
func (r *registry) leave(key string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[key]
	if !ok {
		return false
	}
	if _, ok := rm.members[s]; !ok {
		return false
	}
	delete(rm.members, s)
	if len(rm.members) == 0 {
		delete(r.rooms, key)
	}
	return true
}

// lookup returns the room for key, or nil if no session is joined to it.
func (r *registry) lookup(key string) *room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[key]
}

// membersOf returns a snapshot of the membership set for key. Callers iterate
// the copy freely; the live set is never exposed.
func (r *registry) membersOf(key string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[key]
	if !ok {
		return nil
	}
	out := make([]*Session, 0, len(rm.members))
	for s := range rm.members {
		out = append(out, s)
	}
	return out
}

// push delivers data to every member of rm except sender, without blocking on
// any of them. Members whose send buffer is full are returned as failed; the
// caller decides what to do with them. Pushes happen under the read lock so
// no send channel can be closed from under us.
func (r *registry) push(rm *room, data []byte, sender *Session) (notified int, failed []*Session) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for s := range rm.members {
		if s == sender {
			continue
		}
		select {
		case s.send <- data:
			notified++
		default:
			failed = append(failed, s)
		}
	}
	return notified, failed
}

// count returns the total number of sessions across all rooms.
func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, rm := range r.rooms {
		n += len(rm.members)
	}
	return n
}

// roomCount returns the number of rooms with at least one member.
func (r *registry) roomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// closeAll disconnects every session and empties the registry.
// Used on server shutdown. Each room's member set is cleared as well, so a
// broadcast that captured the room before cancellation pushes into an empty
// set instead of a closed channel.
func (r *registry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, rm := range r.rooms {
		for s := range rm.members {
			close(s.send)
		}
		clear(rm.members)
		delete(r.rooms, key)
	}
}
