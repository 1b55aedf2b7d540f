package broadcast

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/ops-realtime-demo/domain/user"
	"github.com/go-monolith/mono/pkg/types"
)

// Room names.
const (
	OperationsRoom       = "operations_team"
	userRoomPrefix       = "user_"
	departmentRoomPrefix = "department_"
)

// UserRoom returns the private room of a user.
func UserRoom(userID string) string {
	return userRoomPrefix + userID
}

// DepartmentRoom returns the room shared by a department.
func DepartmentRoom(department string) string {
	return departmentRoomPrefix + department
}

// Envelope is the wire frame in both directions.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// UserPresence is a point-in-time view of one online user.
type UserPresence struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"name"`
	Department  string    `json:"department"`
	Rooms       []string  `json:"rooms"`
	ConnectedAt time.Time `json:"connectedAt"`
	Connections int       `json:"connections"`
}

type presence struct {
	identity    user.Identity
	conns       map[string]*Client
	rooms       map[string]struct{}
	connectedAt time.Time
}

// Hub is the presence and room registry. All state sits behind one lock;
// fan-out snapshots recipients under the lock and enqueues after releasing it.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	presence map[string]*presence
	rooms    map[string]map[string]struct{}
	logger   types.Logger
}

// NewHub creates a new Hub.
func NewHub(logger types.Logger) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		presence: make(map[string]*presence),
		rooms:    make(map[string]map[string]struct{}),
		logger:   logger,
	}
}

// Register adds a connection for identity and joins the user's default rooms.
// Registering the same connection twice has no further effect.
func (h *Hub) Register(client *Client, identity user.Identity) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		return
	}
	client.UserID = identity.ID
	h.clients[client.ID] = client

	p, ok := h.presence[identity.ID]
	if !ok {
		p = &presence{
			identity:    identity,
			conns:       make(map[string]*Client),
			rooms:       make(map[string]struct{}),
			connectedAt: client.ConnectedAt,
		}
		h.presence[identity.ID] = p
	}
	p.conns[client.ID] = client

	h.joinLocked(UserRoom(identity.ID), p)
	if identity.Department != "" {
		h.joinLocked(DepartmentRoom(identity.Department), p)
	}
	if identity.IsOperations() {
		h.joinLocked(OperationsRoom, p)
	}

	h.logger.Debug("connection registered",
		"connection_id", client.ID, "user_id", identity.ID, "connections", len(p.conns))
}

// Unregister removes a connection and closes its outbound queue. When it was the
// user's last connection the presence entry and every room membership go with it.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	client, ok := h.clients[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, connID)

	if p, ok := h.presence[client.UserID]; ok {
		delete(p.conns, connID)
		if len(p.conns) == 0 {
			for room := range p.rooms {
				h.removeMemberLocked(room, client.UserID)
			}
			delete(h.presence, client.UserID)
		}
	}
	h.mu.Unlock()

	client.closeQueue()
	h.logger.Debug("connection unregistered", "connection_id", connID, "user_id", client.UserID)
}

// Join adds an online user to room. The operations room only admits the
// Operations department; refused or offline joins return false.
func (h *Hub) Join(room, userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.presence[userID]
	if !ok {
		return false
	}
	return h.joinLocked(room, p)
}

func (h *Hub) joinLocked(room string, p *presence) bool {
	if room == OperationsRoom && !p.identity.IsOperations() {
		return false
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[room] = members
	}
	members[p.identity.ID] = struct{}{}
	p.rooms[room] = struct{}{}
	return true
}

// Leave removes userID from room. Leaving a room one is not in is a no-op.
func (h *Hub) Leave(room, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if p, ok := h.presence[userID]; ok {
		delete(p.rooms, room)
	}
	h.removeMemberLocked(room, userID)
}

func (h *Hub) removeMemberLocked(room, userID string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// LeaveUnlessActive removes userID from room unless another of the user's
// connections is currently viewing it.
func (h *Hub) LeaveUnlessActive(room, userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.presence[userID]
	if !ok {
		return false
	}
	for _, c := range p.conns {
		if c.activeRoom == room {
			return false
		}
	}
	delete(p.rooms, room)
	h.removeMemberLocked(room, userID)
	return true
}

// MembersOf returns the sorted member ids of room.
func (h *Hub) MembersOf(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]string, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		members = append(members, id)
	}
	sort.Strings(members)
	return members
}

// IsMember reports whether userID belongs to room.
func (h *Hub) IsMember(room, userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.rooms[room][userID]
	return ok
}

// SetActiveRoom records the chat room a connection is viewing and returns the previous one.
func (h *Hub) SetActiveRoom(connID, room string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return ""
	}
	prev := client.activeRoom
	client.activeRoom = room
	return prev
}

// ActiveRoom returns the chat room a connection is viewing.
func (h *Hub) ActiveRoom(connID string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if client, ok := h.clients[connID]; ok {
		return client.activeRoom
	}
	return ""
}

// Broadcast queues env for every connection of every member of room except
// excludeUserID and returns the number of connections it was queued for.
func (h *Hub) Broadcast(room string, env Envelope, excludeUserID string) int {
	data, ok := h.marshal(env)
	if !ok {
		return 0
	}

	h.mu.RLock()
	targets := h.memberClientsLocked(room, excludeUserID)
	h.mu.RUnlock()

	return h.deliver(targets, data, env.Type)
}

// BroadcastChat delivers message to members viewing room and activity to members
// that are in the room but viewing another one.
func (h *Hub) BroadcastChat(room string, message, activity Envelope, excludeUserID string) int {
	msgData, ok := h.marshal(message)
	if !ok {
		return 0
	}
	actData, ok := h.marshal(activity)
	if !ok {
		return 0
	}

	var viewing, elsewhere []*Client
	h.mu.RLock()
	for _, c := range h.memberClientsLocked(room, excludeUserID) {
		if c.activeRoom == room {
			viewing = append(viewing, c)
		} else {
			elsewhere = append(elsewhere, c)
		}
	}
	h.mu.RUnlock()

	return h.deliver(viewing, msgData, message.Type) + h.deliver(elsewhere, actData, activity.Type)
}

// SendToUser delivers env to every connection of userID through the private room.
func (h *Hub) SendToUser(userID string, env Envelope) int {
	return h.Broadcast(UserRoom(userID), env, "")
}

// BroadcastAll delivers env to every live connection.
func (h *Hub) BroadcastAll(env Envelope) int {
	data, ok := h.marshal(env)
	if !ok {
		return 0
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	return h.deliver(targets, data, env.Type)
}

func (h *Hub) memberClientsLocked(room, excludeUserID string) []*Client {
	var targets []*Client
	for userID := range h.rooms[room] {
		if userID == excludeUserID {
			continue
		}
		if p, ok := h.presence[userID]; ok {
			for _, c := range p.conns {
				targets = append(targets, c)
			}
		}
	}
	return targets
}

func (h *Hub) marshal(env Envelope) ([]byte, bool) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("failed to marshal frame", "type", env.Type, "error", err)
		return nil, false
	}
	return data, true
}

func (h *Hub) deliver(targets []*Client, data []byte, frameType string) int {
	queued := 0
	for _, c := range targets {
		if c.Enqueue(data) {
			queued++
			continue
		}
		h.logger.Warn("dropped outbound frame", "connection_id", c.ID, "user_id", c.UserID, "type", frameType)
	}
	return queued
}

// IsOnline reports whether userID has at least one live connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.presence[userID]
	return ok
}

// ListOnline returns every online user sorted by id.
func (h *Hub) ListOnline() []UserPresence {
	return h.listOnline(func(user.Identity) bool { return true })
}

// ListOnlineInDepartment returns the online users of department sorted by id.
func (h *Hub) ListOnlineInDepartment(department string) []UserPresence {
	return h.listOnline(func(id user.Identity) bool { return id.Department == department })
}

func (h *Hub) listOnline(keep func(user.Identity) bool) []UserPresence {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]UserPresence, 0, len(h.presence))
	for _, p := range h.presence {
		if !keep(p.identity) {
			continue
		}
		rooms := make([]string, 0, len(p.rooms))
		for room := range p.rooms {
			rooms = append(rooms, room)
		}
		sort.Strings(rooms)
		out = append(out, UserPresence{
			UserID:      p.identity.ID,
			DisplayName: p.identity.DisplayName,
			Department:  p.identity.Department,
			Rooms:       rooms,
			ConnectedAt: p.connectedAt,
			Connections: len(p.conns),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// OnlineCounts maps every non-empty shared room to its number of online
// members. Private user rooms are omitted. Department rooms are also reported
// under the bare department name.
func (h *Hub) OnlineCounts() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	counts := make(map[string]int, len(h.rooms))
	for room, members := range h.rooms {
		if strings.HasPrefix(room, userRoomPrefix) {
			continue
		}
		counts[room] = len(members)
		if dept, ok := strings.CutPrefix(room, departmentRoomPrefix); ok && dept != "" {
			if _, taken := h.rooms[dept]; !taken {
				counts[dept] = len(members)
			}
		}
	}
	return counts
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close drops every connection and closes its transport.
func (h *Hub) Close() int {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.presence = make(map[string]*presence)
	h.rooms = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.closeQueue()
		if err := c.conn.Close(); err != nil {
			h.logger.Debug("failed to close transport", "connection_id", c.ID, "error", err)
		}
	}
	return len(clients)
}
