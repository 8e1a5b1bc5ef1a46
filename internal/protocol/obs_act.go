package protocol

// ObsMsg is the per-tick observation. Fields the bot does not read are left
// undecoded.
type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	AgentID         string `json:"agent_id"`

	Self      SelfObs     `json:"self"`
	Inventory []ItemStack `json:"inventory"`

	Voxels   VoxelsObs   `json:"voxels"`
	Entities []EntityObs `json:"entities"`
	Events   []Event     `json:"events"`

	Memory []MemoryKV `json:"memory,omitempty"`
}

type SelfObs struct {
	Pos [3]int `json:"pos"`
	HP  int    `json:"hp"`
}

type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// Voxel window encodings.
const (
	EncodingRLE   = "RLE"
	EncodingDelta = "DELTA"
)

// VoxelsObs is the cube of block ids around Center. RLE carries a full
// window in Data; DELTA patches the previous window with Ops.
type VoxelsObs struct {
	Center   [3]int         `json:"center"`
	Radius   int            `json:"radius"`
	Encoding string         `json:"encoding"`
	Data     string         `json:"data,omitempty"`
	Ops      []VoxelDeltaOp `json:"ops,omitempty"`
}

type VoxelDeltaOp struct {
	D [3]int `json:"d"` // offset from center
	B uint16 `json:"b"` // palette id
}

type EntityObs struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Pos  [3]int `json:"pos"`
}

type Event map[string]any

type MemoryKV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ACT (client -> server)
type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	AgentID         string       `json:"agent_id"`
	Instants        []InstantReq `json:"instants,omitempty"`
	Tasks           []TaskReq    `json:"tasks,omitempty"`
	Cancel          []string     `json:"cancel,omitempty"`
}

// Instant types used by the bot.
const (
	InstantSay        = "SAY"
	InstantSaveMemory = "SAVE_MEMORY"
	InstantLoadMemory = "LOAD_MEMORY"
)

type InstantReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Channel string `json:"channel,omitempty"`
	Text    string `json:"text,omitempty"`

	Key      string `json:"key,omitempty"`
	Value    string `json:"value,omitempty"`
	TTLTicks int    `json:"ttl_ticks,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// Task types used by the bot.
const (
	TaskMoveTo = "MOVE_TO"
	TaskMine   = "MINE"
	TaskCraft  = "CRAFT"
	TaskSmelt  = "SMELT"
)

type TaskReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Target    [3]int  `json:"target,omitempty"`
	Tolerance float64 `json:"tolerance,omitempty"`

	BlockPos [3]int `json:"block_pos,omitempty"`
	RecipeID string `json:"recipe_id,omitempty"`
	Count    int    `json:"count,omitempty"`
	ItemID   string `json:"item_id,omitempty"`
}
