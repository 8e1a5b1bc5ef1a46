package bridge

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"voxelcraft.ai/goalbot/internal/agent"
	"voxelcraft.ai/goalbot/internal/protocol"
)

// memoryTTLTicks is how long the server keeps a saved location; zero means
// the server default.
const memoryTTLTicks = 0

func newInstantID() string { return "I_" + uuid.NewString() }

func (s *Session) instants(reqs ...protocol.InstantReq) error {
	for i := range reqs {
		reqs[i].ID = newInstantID()
	}
	return s.send(protocol.ActMsg{Instants: reqs})
}

// Say posts text on the local chat channel.
func (s *Session) Say(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return s.instants(protocol.InstantReq{Type: protocol.InstantSay, Channel: "LOCAL", Text: text})
}

// SaveMemory stores a named location in the agent's server-side memory,
// encoded the way OBS memory entries are.
func (s *Session) SaveMemory(key string, pos agent.Vec3) error {
	return s.instants(protocol.InstantReq{
		Type:     protocol.InstantSaveMemory,
		Key:      key,
		Value:    fmt.Sprintf("%d,%d,%d", pos.X, pos.Y, pos.Z),
		TTLTicks: memoryTTLTicks,
	})
}

// LoadMemory asks the server to report up to limit memory entries whose
// key starts with prefix in the next OBS.
func (s *Session) LoadMemory(prefix string, limit int) error {
	return s.instants(protocol.InstantReq{Type: protocol.InstantLoadMemory, Prefix: prefix, Limit: limit})
}
