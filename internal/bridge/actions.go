package bridge

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voxelcraft.ai/goalbot/internal/agent"
	"voxelcraft.ai/goalbot/internal/protocol"
)

var _ agent.Primitives = (*Session)(nil)

// collectRadius bounds the block search of CollectBlock.
const collectRadius = 32

func newTaskID() string { return "K_" + uuid.NewString() }

// submit sends one task and waits for its TASK_DONE or TASK_FAIL. A
// cancelled ctx or the task timeout cancels the task on the server.
func (s *Session) submit(ctx context.Context, task protocol.TaskReq) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	task.ID = newTaskID()
	ch := make(chan protocol.TaskEvent, 1)

	s.mu.Lock()
	s.waiters[task.ID] = ch
	connDone := s.connDone
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.waiters, task.ID)
		s.mu.Unlock()
	}()

	if err := s.send(protocol.ActMsg{Tasks: []protocol.TaskReq{task}}); err != nil {
		return fmt.Errorf("%s: %w", task.Type, err)
	}
	s.log.Debug("task submitted", zap.String("id", task.ID), zap.String("type", task.Type))

	timeout := s.cfg.TaskTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-ch:
		if ev.Done {
			return nil
		}
		return &TaskError{TaskID: ev.TaskID, Kind: task.Type, Code: ev.Code, Message: ev.Message}
	case <-ctx.Done():
		s.cancelTasks(task.ID)
		return ctx.Err()
	case <-timer.C:
		s.cancelTasks(task.ID)
		return fmt.Errorf("%s %s: %w", task.Type, task.ID, ErrTaskTimeout)
	case <-connDone:
		return fmt.Errorf("%s: %w", task.Type, ErrNotConnected)
	}
}

func (s *Session) cancelTasks(ids ...string) {
	if len(ids) == 0 {
		return
	}
	if err := s.send(protocol.ActMsg{Cancel: ids}); err != nil {
		s.log.Debug("cancel not sent", zap.Strings("ids", ids), zap.Error(err))
	}
}

func (s *Session) GoTo(ctx context.Context, pos agent.Vec3, tolerance float64) error {
	return s.submit(ctx, protocol.TaskReq{Type: protocol.TaskMoveTo, Target: pos.Array(), Tolerance: tolerance})
}

func (s *Session) Dig(ctx context.Context, pos agent.Vec3) error {
	return s.submit(ctx, protocol.TaskReq{Type: protocol.TaskMine, BlockPos: pos.Array()})
}

func (s *Session) SmeltItem(ctx context.Context, input string, n int) error {
	return s.submit(ctx, protocol.TaskReq{Type: protocol.TaskSmelt, ItemID: input, Count: n})
}

func (s *Session) CraftRecipe(ctx context.Context, item string, n int) error {
	c := s.cats.Load()
	if c == nil {
		return fmt.Errorf("craft %s: %w", item, ErrNoRecipe)
	}
	r, ok := c.RecipeFor(item)
	if !ok {
		return fmt.Errorf("craft %s: %w", item, ErrNoRecipe)
	}
	return s.submit(ctx, protocol.TaskReq{Type: protocol.TaskCraft, RecipeID: r.RecipeID, Count: n})
}

// CollectBlock walks to and mines the nearest qty blocks of the given type,
// skipping excluded positions and blocks that fail to mine.
func (s *Session) CollectBlock(ctx context.Context, block string, qty int, exclude []agent.Vec3) error {
	skip := map[agent.Vec3]bool{}
	for _, p := range exclude {
		skip[p] = true
	}
	collected := 0
	var lastErr error
	for collected < qty {
		var target *agent.Vec3
		for _, p := range s.NearestBlocks(block, collectRadius, qty+len(skip)) {
			if !skip[p] {
				target = &p
				break
			}
		}
		if target == nil {
			break
		}
		pos := *target
		skip[pos] = true
		if err := s.GoTo(ctx, pos, 2); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}
		if err := s.Dig(ctx, pos); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}
		collected++
	}
	if collected == 0 {
		if lastErr != nil {
			return fmt.Errorf("collect %s: %w", block, lastErr)
		}
		return fmt.Errorf("collect %s: none nearby", block)
	}
	return nil
}

// AttackNearest is not offered by the world protocol.
func (s *Session) AttackNearest(_ context.Context, entity string) error {
	return fmt.Errorf("attack %s: %w", entity, ErrUnsupported)
}

var horizontal = []agent.Vec3{agent.V(1, 0, 0), agent.V(-1, 0, 0), agent.V(0, 0, 1), agent.V(0, 0, -1)}

// MoveAway walks dist blocks in the first horizontal direction that is not
// known to be blocked.
func (s *Session) MoveAway(ctx context.Context, dist float64) error {
	d := int(math.Round(dist))
	if d < 1 {
		d = 1
	}
	pos := s.Position()
	target := pos.Add(agent.V(horizontal[0].X*d, 0, horizontal[0].Z*d))
	for _, dir := range horizontal {
		p := pos.Add(agent.V(dir.X*d, 0, dir.Z*d))
		if b := s.BlockAt(p); b == "" || b == "air" {
			target = p
			break
		}
	}
	return s.GoTo(ctx, target, 1)
}

func controlDir(c agent.Control) (agent.Vec3, bool) {
	switch c {
	case agent.Forward:
		return agent.V(0, 0, 1), true
	case agent.Back:
		return agent.V(0, 0, -1), true
	case agent.Left:
		return agent.V(-1, 0, 0), true
	case agent.Right:
		return agent.V(1, 0, 0), true
	default:
		return agent.Vec3{}, false
	}
}

// SetControl nudges the agent one block in the control's direction without
// waiting for the move. Jump has no protocol equivalent and is ignored.
func (s *Session) SetControl(c agent.Control, on bool) {
	dir, ok := controlDir(c)
	if !on || !ok {
		return
	}
	id := newTaskID()
	task := protocol.TaskReq{ID: id, Type: protocol.TaskMoveTo, Target: s.Position().Add(dir).Array(), Tolerance: 0.5}
	if err := s.send(protocol.ActMsg{Tasks: []protocol.TaskReq{task}}); err != nil {
		s.log.Debug("control move not sent", zap.Stringer("control", c), zap.Error(err))
		return
	}
	s.mu.Lock()
	s.controls = append(s.controls, id)
	s.mu.Unlock()
}

// ClearControls cancels every move started by SetControl.
func (s *Session) ClearControls() {
	s.mu.Lock()
	ids := s.controls
	s.controls = nil
	s.mu.Unlock()
	s.cancelTasks(ids...)
}
