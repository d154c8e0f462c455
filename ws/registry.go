package ws

import (
	"sync"
)

// VideoMember is one connection's presence in a video room.
type VideoMember struct {
	ConnID   string
	UserID   string
	UserName string
}

// RoomRegistry tracks which connections belong to which room. Chat and video
// membership for the same room id are tracked independently: a participant
// can be present in one without the other.
//
// The registry is a plain injectable value with no package-level state.
// Rooms are created implicitly on first join and deleted once their member
// set becomes empty. Nothing here is durable: on restart, membership is
// rebuilt from clients rejoining.
type RoomRegistry struct {
	mu sync.RWMutex
	// chat room id -> set of connection ids
	chatRooms map[string]map[string]struct{}
	// connection id -> the chat room it is currently in.
	// A connection is in at most one chat room at a time: joining a new
	// room removes the previous membership.
	chatRoomOf map[string]string
	// video room id -> connection id -> member descriptor
	videoRooms map[string]map[string]VideoMember
	// connection id -> set of video room ids
	videoRoomsOf map[string]map[string]struct{}
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		chatRooms:    make(map[string]map[string]struct{}),
		chatRoomOf:   make(map[string]string),
		videoRooms:   make(map[string]map[string]VideoMember),
		videoRoomsOf: make(map[string]map[string]struct{}),
	}
}

// JoinChatRoom adds the connection to the room's chat member set, removing it
// from its previous chat room first if there was one.
func (r *RoomRegistry) JoinChatRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.chatRoomOf[connID]; ok {
		if prev == roomID {
			return
		}
		r.removeChatMember(connID, prev)
	}

	members, ok := r.chatRooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.chatRooms[roomID] = members
	}
	members[connID] = struct{}{}
	r.chatRoomOf[connID] = roomID
}

// LeaveChatRoom removes the connection from the room's chat member set.
// It is a no-op if the connection is not a member.
func (r *RoomRegistry) LeaveChatRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeChatMember(connID, roomID)
}

func (r *RoomRegistry) removeChatMember(connID, roomID string) {
	members, ok := r.chatRooms[roomID]
	if !ok {
		return
	}
	if _, ok := members[connID]; !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.chatRooms, roomID)
	}
	if r.chatRoomOf[connID] == roomID {
		delete(r.chatRoomOf, connID)
	}
}

// ChatRoomMembers returns a snapshot of the room's chat member set.
func (r *RoomRegistry) ChatRoomMembers(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.chatRooms[roomID]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// JoinVideoRoom adds a descriptor to the room's video member set and returns
// the member set as it existed before the join, so the caller can send the
// joiner an existing-participants list that never contains the joiner itself.
func (r *RoomRegistry) JoinVideoRoom(connID, roomID, userID, userName string) []VideoMember {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.videoRooms[roomID]
	if !ok {
		members = make(map[string]VideoMember)
		r.videoRooms[roomID] = members
	}

	existing := make([]VideoMember, 0, len(members))
	for id, m := range members {
		if id == connID {
			continue
		}
		existing = append(existing, m)
	}

	members[connID] = VideoMember{ConnID: connID, UserID: userID, UserName: userName}

	joined, ok := r.videoRoomsOf[connID]
	if !ok {
		joined = make(map[string]struct{})
		r.videoRoomsOf[connID] = joined
	}
	joined[roomID] = struct{}{}

	return existing
}

// LeaveVideoRoom removes the descriptor from the room's video member set and
// returns the remaining members' connection ids. It is a no-op returning nil
// if the connection is not a member.
func (r *RoomRegistry) LeaveVideoRoom(connID, roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeVideoMember(connID, roomID)
}

func (r *RoomRegistry) removeVideoMember(connID, roomID string) []string {
	members, ok := r.videoRooms[roomID]
	if !ok {
		return nil
	}
	if _, ok := members[connID]; !ok {
		return nil
	}
	delete(members, connID)

	if joined, ok := r.videoRoomsOf[connID]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(r.videoRoomsOf, connID)
		}
	}

	if len(members) == 0 {
		delete(r.videoRooms, roomID)
		return []string{}
	}

	remaining := make([]string, 0, len(members))
	for id := range members {
		remaining = append(remaining, id)
	}
	return remaining
}

// DropConn removes the connection from its chat room and every video room it
// occupied, treating an ungraceful disconnect identically to explicit leaves.
// It returns, per video room left, the remaining members to notify.
func (r *RoomRegistry) DropConn(connID string) map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if roomID, ok := r.chatRoomOf[connID]; ok {
		r.removeChatMember(connID, roomID)
	}

	var left map[string][]string
	if joined, ok := r.videoRoomsOf[connID]; ok {
		left = make(map[string][]string, len(joined))
		for roomID := range joined {
			remaining := r.removeVideoMember(connID, roomID)
			if remaining != nil {
				left[roomID] = remaining
			}
		}
	}
	return left
}
