package bridge

import (
	"sort"
	"strings"

	"voxelcraft.ai/goalbot/internal/agent"
	"voxelcraft.ai/goalbot/internal/encoding"
)

var _ agent.World = (*Session)(nil)

func (s *Session) Count(item string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.obs == nil {
		return 0
	}
	n := 0
	for _, st := range s.obs.Inventory {
		if st.Item == item {
			n += st.Count
		}
	}
	return n
}

func (s *Session) Position() agent.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positionLocked()
}

func (s *Session) positionLocked() agent.Vec3 {
	if s.obs == nil {
		return agent.Vec3{}
	}
	p := s.obs.Self.Pos
	return agent.V(p[0], p[1], p[2])
}

// blockName maps a palette id, preferring the palette the server sent.
func (s *Session) blockName(id uint16) string {
	if int(id) < len(s.palette) {
		return s.palette[id]
	}
	if s.palette == nil {
		if c := s.cats.Load(); c != nil && int(id) < len(c.Blocks.Palette) {
			return c.Blocks.Palette[id]
		}
	}
	return ""
}

// BlockAt returns the block at pos, or "" outside the observed window.
func (s *Session) BlockAt(pos agent.Vec3) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.view
	if v.ids == nil {
		return ""
	}
	i, ok := encoding.Index(pos.X-v.center.X, pos.Y-v.center.Y, pos.Z-v.center.Z, v.radius)
	if !ok {
		return ""
	}
	return s.blockName(v.ids[i])
}

func (s *Session) NearestBlocks(block string, radius, limit int) []agent.Vec3 {
	return s.FindBlocks(func(b string) bool { return b == block }, radius, limit)
}

// FindBlocks lists observed blocks matching match within maxDist of the
// agent, nearest first.
func (s *Session) FindBlocks(match func(string) bool, maxDist, count int) []agent.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.view
	self := s.positionLocked()

	var out []agent.Vec3
	for i, id := range v.ids {
		name := s.blockName(id)
		if name == "" || !match(name) {
			continue
		}
		dx, dy, dz := encoding.Delta(i, v.radius)
		p := v.center.Add(agent.V(dx, dy, dz))
		if self.Dist(p) <= float64(maxDist) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := self.Dist(out[i]), self.Dist(out[j])
		if di != dj {
			return di < dj
		}
		return out[i].String() < out[j].String()
	})
	if count > 0 && len(out) > count {
		out = out[:count]
	}
	return out
}

// NearbyBlockTypes lists the distinct non-air blocks in the observed window.
func (s *Session) NearbyBlockTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[uint16]bool{}
	var out []string
	for _, id := range s.view.ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if name := s.blockName(id); name != "" && name != "air" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// NearbyEntityTypes lists the distinct entity types in view, lowercased.
func (s *Session) NearbyEntityTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.obs == nil {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, e := range s.obs.Entities {
		t := strings.ToLower(e.Type)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
