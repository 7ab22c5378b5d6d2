// Package rooms tracks which connections are subscribed to which rooms.
//
// A Registry keeps two indexes, connection to rooms and room to connections,
// and every operation updates both so they always mirror each other. It is
// not safe for concurrent use: the hub's dispatch loop is its only owner.
package rooms

import (
	"sort"
	"strings"

	"github.com/agentstation/statuspage/pkg/errors"
)

// Prefix is prepended to an organization slug to form its room name.
const Prefix = "org-"

// RoomName returns the room for an organization slug.
func RoomName(slug string) string {
	return Prefix + slug
}

// SlugOf returns the organization slug of a room and whether the room is an
// organization room.
func SlugOf(room string) (string, bool) {
	slug, ok := strings.CutPrefix(room, Prefix)
	return slug, ok && slug != ""
}

type set map[string]struct{}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Registry is the authoritative connection/room membership table.
type Registry struct {
	byConn     map[string]set
	byRoom     map[string]set
	maxPerRoom int
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxPerRoom caps the members of a single room. Zero means unbounded.
func WithMaxPerRoom(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxPerRoom = n
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		byConn: make(map[string]set),
		byRoom: make(map[string]set),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a connection with no rooms. Registering a known id keeps its
// memberships.
func (r *Registry) Register(id string) {
	if _, ok := r.byConn[id]; ok {
		return
	}
	r.byConn[id] = make(set)
}

// Unregister removes a connection from every room it belonged to and returns
// those rooms. Unknown ids are ignored.
func (r *Registry) Unregister(id string) []string {
	joined, ok := r.byConn[id]
	if !ok {
		return nil
	}
	left := joined.sorted()
	for _, room := range left {
		r.removeMember(room, id)
	}
	delete(r.byConn, id)
	return left
}

// Join adds the connection to a room. Joining a room twice is a no-op.
func (r *Registry) Join(id, room string) error {
	joined, ok := r.byConn[id]
	if !ok {
		return errors.NewUnknownConnectionError(id)
	}
	if _, member := joined[room]; member {
		return nil
	}
	members := r.byRoom[room]
	if r.maxPerRoom > 0 && len(members) >= r.maxPerRoom {
		return errors.ErrRoomFull
	}
	if members == nil {
		members = make(set)
		r.byRoom[room] = members
	}
	members[id] = struct{}{}
	joined[room] = struct{}{}
	return nil
}

// Leave removes the connection from a room and reports whether it was a member.
func (r *Registry) Leave(id, room string) bool {
	joined, ok := r.byConn[id]
	if !ok {
		return false
	}
	if _, member := joined[room]; !member {
		return false
	}
	delete(joined, room)
	r.removeMember(room, id)
	return true
}

// removeMember drops id from a room and evicts the room once empty.
func (r *Registry) removeMember(room, id string) {
	members, ok := r.byRoom[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(r.byRoom, room)
	}
}

// ConnectionsOf returns a sorted snapshot of a room's members.
func (r *Registry) ConnectionsOf(room string) []string {
	return r.byRoom[room].sorted()
}

// RoomsOf returns a sorted snapshot of a connection's rooms.
func (r *Registry) RoomsOf(id string) []string {
	return r.byConn[id].sorted()
}

// Has reports whether the connection is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.byConn[id]
	return ok
}

// ConnectionCount returns the number of registered connections.
func (r *Registry) ConnectionCount() int {
	return len(r.byConn)
}

// RoomCount returns the number of non-empty rooms.
func (r *Registry) RoomCount() int {
	return len(r.byRoom)
}

// RoomSize returns the number of members in a room.
func (r *Registry) RoomSize(room string) int {
	return len(r.byRoom[room])
}

// Rooms returns the names of all non-empty rooms, sorted.
func (r *Registry) Rooms() []string {
	out := make([]string, 0, len(r.byRoom))
	for room := range r.byRoom {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}
