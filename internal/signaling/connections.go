package signaling

// Connections tracks every live participant and the room it is bound to.
// The binding is a back-reference only, used to find the room to clean up.
type Connections struct {
	bound map[ParticipantID]string
}

func NewConnections() *Connections {
	return &Connections{bound: make(map[ParticipantID]string)}
}

func (c *Connections) Connect(p ParticipantID) {
	if _, ok := c.bound[p]; !ok {
		c.bound[p] = ""
	}
}

func (c *Connections) Disconnect(p ParticipantID) {
	delete(c.bound, p)
}

func (c *Connections) Connected(p ParticipantID) bool {
	_, ok := c.bound[p]
	return ok
}

// RoomOf returns the room p is bound to, if any.
func (c *Connections) RoomOf(p ParticipantID) (string, bool) {
	room := c.bound[p]
	return room, room != ""
}

func (c *Connections) Bind(p ParticipantID, room string) {
	if _, ok := c.bound[p]; ok {
		c.bound[p] = room
	}
}

func (c *Connections) Unbind(p ParticipantID) {
	if _, ok := c.bound[p]; ok {
		c.bound[p] = ""
	}
}

func (c *Connections) Len() int { return len(c.bound) }

type connCheckpoint struct {
	id        ParticipantID
	room      string
	connected bool
}

func (c *Connections) checkpoint(p ParticipantID) connCheckpoint {
	room, connected := c.bound[p]
	return connCheckpoint{id: p, room: room, connected: connected}
}

func (c *Connections) restore(cp connCheckpoint) {
	if !cp.connected {
		delete(c.bound, cp.id)
		return
	}
	c.bound[cp.id] = cp.room
}
