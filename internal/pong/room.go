package pong

const (
	// DefaultRooms is the number of game rooms created at startup.
	DefaultRooms = 4
	// SeatsPerRoom is the number of player slots in a room.
	SeatsPerRoom = 2
)

// JoinOutcome classifies the result of a seat request.
type JoinOutcome int

const (
	JoinJoined JoinOutcome = iota
	JoinAlreadySeated
	JoinFull
	JoinInvalidRoom
	JoinInvalidLabel
)

func (o JoinOutcome) String() string {
	switch o {
	case JoinJoined:
		return "joined"
	case JoinAlreadySeated:
		return "already_seated"
	case JoinFull:
		return "full"
	case JoinInvalidRoom:
		return "invalid_room"
	case JoinInvalidLabel:
		return "invalid_label"
	default:
		return "unknown"
	}
}

// JoinResult reports the outcome of Join and, for Joined and AlreadySeated,
// the seat the label occupies.
type JoinResult struct {
	Outcome JoinOutcome
	Seat    int
}

// Room holds the seats and simulation state of one game room. Seat i owns
// Paddles[i]; an empty label marks a free seat.
type Room struct {
	Index      int
	Seats      [SeatsPerRoom]string
	Paddles    [SeatsPerRoom]float64
	BallX      float64
	BallY      float64
	VelX       float64
	VelY       float64
	LastUpdate int64
}

// Active reports whether both seats are occupied.
func (r Room) Active() bool {
	for _, label := range r.Seats {
		if label == "" {
			return false
		}
	}
	return true
}

// Players lists the seat labels in seat order. A free seat before an
// occupied one renders as an empty string; trailing free seats are omitted.
func (r Room) Players() []string {
	last := -1
	for i, label := range r.Seats {
		if label != "" {
			last = i
		}
	}
	players := make([]string, last+1)
	copy(players, r.Seats[:last+1])
	return players
}

// Seated lists only the occupied seats' labels, in seat order.
func (r Room) Seated() []string {
	seated := make([]string, 0, SeatsPerRoom)
	for _, label := range r.Seats {
		if label != "" {
			seated = append(seated, label)
		}
	}
	return seated
}

func (r *Room) seatOf(label string) int {
	for i, seated := range r.Seats {
		if seated != "" && seated == label {
			return i
		}
	}
	return -1
}

// Roster is the lobby view of one room. Players holds the seated labels
// with free seats skipped.
type Roster struct {
	Index   int
	Players []string
}

// Registry owns the fixed set of rooms. It is not safe for concurrent use;
// the hub loop is its only caller.
type Registry struct {
	rooms []Room
}

// NewRegistry creates count rooms in their initial serve state.
func NewRegistry(count int, now int64) *Registry {
	if count < 1 {
		count = 1
	}
	rooms := make([]Room, count)
	for i := range rooms {
		rooms[i] = Room{
			Index:      i,
			Paddles:    [SeatsPerRoom]float64{PaddleStart, PaddleStart},
			BallX:      CenterX,
			BallY:      CenterY,
			VelX:       ServeSpeedX,
			VelY:       ServeSpeedY,
			LastUpdate: now,
		}
	}
	return &Registry{rooms: rooms}
}

// Len reports the number of rooms.
func (g *Registry) Len() int {
	if g == nil {
		return 0
	}
	return len(g.rooms)
}

// List returns the roster of every room in index order.
func (g *Registry) List() []Roster {
	if g == nil {
		return nil
	}
	rosters := make([]Roster, len(g.rooms))
	for i, room := range g.rooms {
		rosters[i] = Roster{Index: i, Players: room.Seated()}
	}
	return rosters
}

// Room returns a copy of the room at index.
func (g *Registry) Room(index int) (Room, bool) {
	room := g.room(index)
	if room == nil {
		return Room{}, false
	}
	return *room, true
}

// Join seats label, exactly as given, in the room at index. Joining is
// idempotent per label: a label already seated in the room keeps its seat.
// The empty label marks a free seat and is refused.
func (g *Registry) Join(index int, label string) JoinResult {
	room := g.room(index)
	if room == nil {
		return JoinResult{Outcome: JoinInvalidRoom, Seat: -1}
	}
	if label == "" {
		return JoinResult{Outcome: JoinInvalidLabel, Seat: -1}
	}
	if seat := room.seatOf(label); seat >= 0 {
		return JoinResult{Outcome: JoinAlreadySeated, Seat: seat}
	}
	for seat, seated := range room.Seats {
		if seated == "" {
			room.Seats[seat] = label
			return JoinResult{Outcome: JoinJoined, Seat: seat}
		}
	}
	return JoinResult{Outcome: JoinFull, Seat: -1}
}

// Leave frees a seat and returns the label that held it.
func (g *Registry) Leave(index, seat int) (string, bool) {
	room := g.room(index)
	if room == nil || seat < 0 || seat >= SeatsPerRoom {
		return "", false
	}
	label := room.Seats[seat]
	if label == "" {
		return "", false
	}
	room.Seats[seat] = ""
	return label, true
}

func (g *Registry) room(index int) *Room {
	if g == nil || index < 0 || index >= len(g.rooms) {
		return nil
	}
	return &g.rooms[index]
}
