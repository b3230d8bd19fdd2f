package game

// Ball is the normalized ball position and velocity at one tick.
type Ball struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
}

// Paddle is a paddle center position on the vertical axis.
type Paddle struct {
	Y float64 `json:"y"`
}

// Score holds both players' points.
type Score struct {
	P1 int `json:"p1"`
	P2 int `json:"p2"`
}

// Snapshot is an immutable point-in-time view of a match, produced once per
// tick and broadcast to both participants. It carries no reference back to
// the match so clients can buffer and interpolate it freely.
type Snapshot struct {
	Timestamp int64  `json:"timestamp"` // server tick time, unix millis
	Ball      Ball   `json:"ball"`
	P1        Paddle `json:"p1"`
	P2        Paddle `json:"p2"`
	Score     Score  `json:"score"`
}

// Side identifies one of the two players by field side.
type Side int

const (
	SideNone Side = iota
	SideLeft
	SideRight
)

// Direction is a paddle movement intent. Up decreases y.
type Direction int8

const (
	DirUp   Direction = -1
	DirStop Direction = 0
	DirDown Direction = 1
)

// ParseDirection maps a wire direction string onto a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "up":
		return DirUp, true
	case "down":
		return DirDown, true
	case "stop":
		return DirStop, true
	}
	return DirStop, false
}
