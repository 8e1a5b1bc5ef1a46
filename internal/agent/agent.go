// Package agent defines what the planner and the supervisor need from the
// running bot: world queries, action primitives and shared signals.
package agent

import (
	"context"
	"fmt"
	"math"
)

type Vec3 struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func V(x, y, z int) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Dist is the Euclidean distance between two block positions.
func (v Vec3) Dist(o Vec3) float64 {
	dx := float64(v.X - o.X)
	dy := float64(v.Y - o.Y)
	dz := float64(v.Z - o.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (v Vec3) Array() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vec3) String() string { return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z) }

// World answers inventory and block queries against the latest observation.
type World interface {
	Count(item string) int
	Position() Vec3
	// NearestBlocks returns up to limit positions of block within radius,
	// closest first.
	NearestBlocks(block string, radius, limit int) []Vec3
	FindBlocks(match func(block string) bool, maxDist, count int) []Vec3
	BlockAt(pos Vec3) string
	NearbyBlockTypes() []string
	NearbyEntityTypes() []string
}

type Control int

const (
	Forward Control = iota
	Back
	Left
	Right
	Jump
)

func (c Control) String() string {
	switch c {
	case Forward:
		return "forward"
	case Back:
		return "back"
	case Left:
		return "left"
	case Right:
		return "right"
	case Jump:
		return "jump"
	default:
		return fmt.Sprintf("control(%d)", int(c))
	}
}

// Primitives are the world-affecting calls. Every blocking call takes a
// context and must return once it is cancelled.
type Primitives interface {
	// CollectBlock gathers qty blocks of the given type, skipping any
	// position in exclude.
	CollectBlock(ctx context.Context, block string, qty int, exclude []Vec3) error
	SmeltItem(ctx context.Context, input string, n int) error
	AttackNearest(ctx context.Context, entity string) error
	CraftRecipe(ctx context.Context, item string, n int) error
	GoTo(ctx context.Context, pos Vec3, tolerance float64) error
	Dig(ctx context.Context, pos Vec3) error
	MoveAway(ctx context.Context, dist float64) error
	SetControl(c Control, on bool)
	ClearControls()
}

// Signals is the agent-level state shared between the supervisor, the
// planner and whatever drives them.
type Signals interface {
	RequestInterrupt()
	ClearInterrupt()
	Interrupted() bool

	Output() string
	ClearOutput()

	Generating() bool
	SelfPrompting() bool

	// Reserved lists positions the bot built itself and must not mine.
	Reserved() []Vec3

	EmitIdle()
}

// History is an append-only log of what the bot did.
type History interface {
	Add(role, text string)
}
