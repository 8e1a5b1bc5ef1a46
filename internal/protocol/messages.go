package protocol

import "encoding/json"

// HelloMsg opens every connection. Auth carries the resume token from the
// previous WELCOME so the server keeps the same agent.
type HelloMsg struct {
	Type              string            `json:"type"`
	ProtocolVersion   string            `json:"protocol_version"`
	SupportedVersions []string          `json:"supported_versions,omitempty"`
	AgentName         string            `json:"agent_name"`
	Capabilities      HelloCapabilities `json:"capabilities"`
	Auth              *HelloAuth        `json:"auth,omitempty"`
}

type HelloCapabilities struct {
	DeltaVoxels bool `json:"delta_voxels,omitempty"`
	MaxQueue    int  `json:"max_queue,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// NewHello builds the handshake the bot sends on every (re)connect.
func NewHello(agentName, resumeToken string, maxQueue int) HelloMsg {
	h := HelloMsg{
		Type:              TypeHello,
		ProtocolVersion:   Version,
		SupportedVersions: SupportedVersions,
		AgentName:         agentName,
		Capabilities: HelloCapabilities{
			DeltaVoxels: true,
			MaxQueue:    maxQueue,
		},
	}
	if resumeToken != "" {
		h.Auth = &HelloAuth{Token: resumeToken}
	}
	return h
}

type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AgentID         string `json:"agent_id"`
	ResumeToken     string `json:"resume_token"`
	CurrentWorldID  string `json:"current_world_id,omitempty"`
}

// CATALOG (server -> client): a chunk of catalog data. Data is kept raw so
// the catalogs package can decode it with its own types.
type CatalogMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Name            string          `json:"name"`   // e.g. "block_palette"
	Digest          string          `json:"digest"` // sha256 hex
	Part            int             `json:"part"`
	TotalParts      int             `json:"total_parts"`
	Data            json.RawMessage `json:"data"`
}

// CatalogBlockPalette is the catalog mapping voxel ids to block names.
const CatalogBlockPalette = "block_palette"
