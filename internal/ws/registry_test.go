package ws

import (
	"encoding/json"
	"sync"
	"testing"
)

// member builds a bare session with a buffered send channel, enough for
// registry and dispatch tests that never touch a real connection. Sessions
// always know their room key, like the ones ServeHTTP builds.
func member(room string, buf int) *Session {
	return &Session{id: "test", room: room, send: make(chan []byte, buf)}
}

func TestJoin_CreatesRoom(t *testing.T) {
	r := newRegistry()
	s := member("proj-1", 1)

	r.join("proj-1", s)

	if got := len(r.membersOf("proj-1")); got != 1 {
		t.Errorf("members: got %d, want 1", got)
	}
}

func TestJoin_Idempotent(t *testing.T) {
	r := newRegistry()
	s := member("proj-1", 1)

	r.join("proj-1", s)
	r.join("proj-1", s)

	if got := len(r.membersOf("proj-1")); got != 1 {
		t.Errorf("members after double join: got %d, want 1", got)
	}
}

func TestLeave_RemovesMember(t *testing.T) {
	r := newRegistry()
	s1, s2 := member("proj-1", 1), member("proj-1", 1)
	r.join("proj-1", s1)
	r.join("proj-1", s2)

	if !r.leave("proj-1", s1) {
		t.Error("leave: got false, want true for a member")
	}
	if got := len(r.membersOf("proj-1")); got != 1 {
		t.Errorf("members after leave: got %d, want 1", got)
	}
}

func TestLeave_AbsentMember_NoOp(t *testing.T) {
	r := newRegistry()
	r.join("proj-1", member("proj-1", 1))

	if r.leave("proj-1", member("proj-1", 1)) {
		t.Error("leave of non-member: got true, want false")
	}
	if r.leave("no-such-room", member("no-such-room", 1)) {
		t.Error("leave of unknown room: got true, want false")
	}
}

func TestLeave_PrunesEmptyRoom(t *testing.T) {
	r := newRegistry()
	s := member("proj-1", 1)
	r.join("proj-1", s)
	r.leave("proj-1", s)

	if got := r.roomCount(); got != 0 {
		t.Errorf("roomCount after last leave: got %d, want 0", got)
	}
	if rm := r.lookup("proj-1"); rm != nil {
		t.Error("lookup after prune: got room, want nil")
	}
}

// Replaying any join/leave sequence must leave membersOf equal to the set
// implied by joins minus leaves.
func TestJoinLeave_Replay(t *testing.T) {
	r := newRegistry()
	a, b, c := member("proj-1", 1), member("proj-1", 1), member("proj-1", 1)

	r.join("proj-1", a)
	r.join("proj-1", b)
	r.join("proj-1", a) // duplicate, collapses
	r.join("proj-1", c)
	r.leave("proj-1", b)
	r.leave("proj-1", b) // no-op

	got := r.membersOf("proj-1")
	if len(got) != 2 {
		t.Fatalf("members: got %d, want 2", len(got))
	}
	want := map[*Session]bool{a: true, c: true}
	for _, s := range got {
		if !want[s] {
			t.Errorf("unexpected member %p", s)
		}
	}
}

func TestMembersOf_ReturnsSnapshot(t *testing.T) {
	r := newRegistry()
	s := member("proj-1", 1)
	r.join("proj-1", s)

	snap := r.membersOf("proj-1")
	snap[0] = nil // mutating the copy must not touch the registry

	if got := len(r.membersOf("proj-1")); got != 1 {
		t.Errorf("members after snapshot mutation: got %d, want 1", got)
	}
}

func TestCount_AcrossRooms(t *testing.T) {
	r := newRegistry()
	r.join("proj-1", member("proj-1", 1))
	r.join("proj-1", member("proj-1", 1))
	r.join("proj-2", member("proj-2", 1))

	if got := r.count(); got != 3 {
		t.Errorf("count: got %d, want 3", got)
	}
	if got := r.roomCount(); got != 2 {
		t.Errorf("roomCount: got %d, want 2", got)
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	r := newRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := member("proj-1", 1)
			r.join("proj-1", s)
			r.membersOf("proj-1")
			r.leave("proj-1", s)
		}()
	}
	wg.Wait()

	if got := r.count(); got != 0 {
		t.Errorf("count after churn: got %d, want 0", got)
	}
}

// A push through a room reference captured before closeAll must deliver to
// nobody rather than hit a closed send channel.
func TestCloseAll_StaleRoomPushDeliversNothing(t *testing.T) {
	r := newRegistry()
	s := member("proj-7", 4)
	r.join("proj-7", s)

	rm := r.lookup("proj-7")
	r.closeAll()

	notified, failed := r.push(rm, []byte(`{}`), nil)
	if notified != 0 || len(failed) != 0 {
		t.Errorf("push after closeAll: notified %d, failed %d, want 0/0",
			notified, len(failed))
	}
	if _, open := <-s.send; open {
		t.Error("send channel still open after closeAll")
	}
}

// --- dispatch ---------------------------------------------------------------

func decodeEvent(t *testing.T, raw []byte) Event {
	t.Helper()
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return ev
}

func TestBroadcast_WrapsPayload(t *testing.T) {
	h := New(Options{})
	s := member("proj-7", 4)
	h.reg.join("proj-7", s)

	payload := []byte(`{"type":"task_update","task_id":42,"status":"DONE"}`)
	if got := h.broadcast("proj-7", payload, nil); got != 1 {
		t.Fatalf("notified: got %d, want 1", got)
	}

	ev := decodeEvent(t, <-s.send)
	if ev.Type != EventTaskUpdate {
		t.Errorf("type: got %q, want %q", ev.Type, EventTaskUpdate)
	}
	if string(ev.Data) != string(payload) {
		t.Errorf("data: got %s, want %s", ev.Data, payload)
	}
}

func TestBroadcast_ExcludesSender(t *testing.T) {
	h := New(Options{})
	sender, other := member("proj-7", 4), member("proj-7", 4)
	h.reg.join("proj-7", sender)
	h.reg.join("proj-7", other)

	if got := h.broadcast("proj-7", []byte(`{}`), sender); got != 1 {
		t.Fatalf("notified: got %d, want 1", got)
	}
	if len(sender.send) != 0 {
		t.Error("sender received its own broadcast")
	}
	if len(other.send) != 1 {
		t.Error("other member did not receive the broadcast")
	}
}

func TestBroadcast_EmptyRoom_ZeroNotified(t *testing.T) {
	h := New(Options{})
	if got := h.broadcast("nobody-home", []byte(`{}`), nil); got != 0 {
		t.Errorf("notified: got %d, want 0", got)
	}
}

// A member with a full buffer must not block or fail delivery to the rest.
func TestBroadcast_FailingMemberIsolated(t *testing.T) {
	h := New(Options{})
	stuck := member("proj-7", 0) // unbuffered and never read: every push fails
	ok1, ok2 := member("proj-7", 4), member("proj-7", 4)
	h.reg.join("proj-7", stuck)
	h.reg.join("proj-7", ok1)
	h.reg.join("proj-7", ok2)

	if got := h.broadcast("proj-7", []byte(`{}`), nil); got != 2 {
		t.Errorf("notified: got %d, want 2", got)
	}
	// The failing member is dropped from the room.
	if got := len(h.reg.membersOf("proj-7")); got != 2 {
		t.Errorf("members after failed push: got %d, want 2", got)
	}
	// Its send channel is closed so the write pump shuts down.
	if _, open := <-stuck.send; open {
		t.Error("stuck member's send channel still open")
	}
}

// The room a failing member is removed from is the one the broadcast went to,
// regardless of what the session believes its room is.
func TestBroadcast_DropsFailedMemberFromDispatchedRoom(t *testing.T) {
	h := New(Options{})
	stuck := member("", 0) // stale room field
	h.reg.join("proj-7", stuck)

	if got := h.broadcast("proj-7", []byte(`{}`), nil); got != 0 {
		t.Errorf("notified: got %d, want 0", got)
	}
	if got := len(h.reg.membersOf("proj-7")); got != 0 {
		t.Errorf("members after failed push: got %d, want 0", got)
	}
	if _, open := <-stuck.send; open {
		t.Error("stuck member's send channel still open")
	}
}

func TestBroadcast_RoomIsolation(t *testing.T) {
	h := New(Options{})
	a, b := member("proj-a", 4), member("proj-b", 4)
	h.reg.join("proj-a", a)
	h.reg.join("proj-b", b)

	if got := h.broadcast("proj-a", []byte(`{}`), nil); got != 1 {
		t.Errorf("notified: got %d, want 1", got)
	}
	if len(b.send) != 0 {
		t.Error("member of another room received the broadcast")
	}
}

func TestBroadcast_LeftMemberNeverReceives(t *testing.T) {
	h := New(Options{})
	gone, stays := member("proj-7", 4), member("proj-7", 4)
	h.reg.join("proj-7", gone)
	h.reg.join("proj-7", stays)

	h.drop(gone)

	if got := h.broadcast("proj-7", []byte(`{}`), nil); got != 1 {
		t.Errorf("notified: got %d, want 1", got)
	}
	select {
	case _, open := <-gone.send:
		if open {
			t.Error("departed member received the broadcast")
		}
	default:
	}
}

// Two broadcasts published in order are observed in order by every member.
func TestBroadcast_PerRoomOrdering(t *testing.T) {
	h := New(Options{})
	s := member("proj-7", 16)
	h.reg.join("proj-7", s)

	h.broadcast("proj-7", []byte(`{"seq":1}`), nil)
	h.broadcast("proj-7", []byte(`{"seq":2}`), nil)

	first := decodeEvent(t, <-s.send)
	second := decodeEvent(t, <-s.send)
	if string(first.Data) != `{"seq":1}` || string(second.Data) != `{"seq":2}` {
		t.Errorf("order: got %s then %s", first.Data, second.Data)
	}
}

func TestRoomKeyFromPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/ws/tasks/proj-7", "proj-7"},
		{"/ws/tasks/proj-7/", "proj-7"},
		{"/ws/tasks/", ""},
		{"/ws/tasks/a/b", ""},
		{"/somewhere/else", ""},
	}
	for _, c := range cases {
		if got := roomKeyFromPath(c.path); got != c.want {
			t.Errorf("roomKeyFromPath(%q): got %q, want %q", c.path, got, c.want)
		}
	}
}
