package pong

import "math/rand"

// Field geometry and motion constants, in field units.
const (
	FieldWidth  = 800.0
	FieldHeight = 400.0
	CenterX     = FieldWidth / 2
	CenterY     = FieldHeight / 2

	ServeSpeedX = 2.0
	ServeSpeedY = 1.5

	wallTop     = 15.0
	wallBottom  = FieldHeight - 15.0
	leftGoalX   = 25.0
	rightGoalX  = FieldWidth - 25.0
	paddleReach = 50.0

	PaddleStart = 200.0
	PaddleMin   = 50.0
	PaddleMax   = 350.0
	PaddleStep  = 5.0
)

// StepResult describes what happened to a room during one tick.
type StepResult struct {
	Room   int
	Hit    bool
	Served bool
}

// Engine advances ball and paddle state.
type Engine struct {
	rng *rand.Rand
}

// NewEngine constructs an engine drawing serve directions from rng.
func NewEngine(rng *rand.Rand) *Engine {
	return &Engine{rng: rng}
}

// Tick steps every active room in index order and returns one result per
// stepped room.
func (e *Engine) Tick(rooms *Registry, now int64) []StepResult {
	if rooms == nil {
		return nil
	}
	results := make([]StepResult, 0, len(rooms.rooms))
	for i := range rooms.rooms {
		room := &rooms.rooms[i]
		if !room.Active() {
			continue
		}
		results = append(results, e.Step(room, now))
	}
	return results
}

// Step advances a single room by one tick.
func (e *Engine) Step(room *Room, now int64) StepResult {
	result := StepResult{Room: room.Index}

	room.BallX += room.VelX
	room.BallY += room.VelY

	if room.BallY <= wallTop || room.BallY >= wallBottom {
		room.VelY = -room.VelY
	}

	if room.BallX <= leftGoalX && withinReach(room.BallY, room.Paddles[0]) {
		room.VelX = -room.VelX
		room.BallX = leftGoalX
		result.Hit = true
	}
	if room.BallX >= rightGoalX && withinReach(room.BallY, room.Paddles[1]) {
		room.VelX = -room.VelX
		room.BallX = rightGoalX
		result.Hit = true
	}

	if room.BallX < 0 || room.BallX > FieldWidth {
		e.serve(room)
		result.Served = true
	}

	room.LastUpdate = now
	return result
}

// ApplyInput moves a paddle by one step per input event. Each event moves
// the paddle regardless of tick timing, so rapid repeated events move it
// faster than a single held input. Direction must be -1, 0 or 1.
func (e *Engine) ApplyInput(rooms *Registry, index, seat, direction int) bool {
	room := rooms.room(index)
	if room == nil || seat < 0 || seat >= SeatsPerRoom {
		return false
	}
	if direction < -1 || direction > 1 {
		return false
	}
	room.Paddles[seat] = clamp(room.Paddles[seat]+float64(direction)*PaddleStep, PaddleMin, PaddleMax)
	return true
}

func (e *Engine) serve(room *Room) {
	room.BallX = CenterX
	room.BallY = CenterY
	room.VelX = ServeSpeedX
	if e.coin() {
		room.VelX = -ServeSpeedX
	}
	room.VelY = ServeSpeedY
	if e.coin() {
		room.VelY = -ServeSpeedY
	}
}

func (e *Engine) coin() bool {
	if e != nil && e.rng != nil {
		return e.rng.Intn(2) == 0
	}
	return rand.Intn(2) == 0
}

func withinReach(ballY, paddleY float64) bool {
	return ballY >= paddleY-paddleReach && ballY <= paddleY+paddleReach
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
