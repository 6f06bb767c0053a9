package observerproto

// Version is the observer protocol version.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to change the focus.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Optional: only stream this agent.
	FocusAgentID string `json:"focus_agent_id,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	Objects         []string    `json:"objects"`
	Mobs            []string    `json:"mobs"`
}

type WorldParams struct {
	TileSize           float64 `json:"tile_size"`
	ChunkSize          int     `json:"chunk_size"`
	Seed               int64   `json:"seed"`
	DecisionIntervalMs int     `json:"decision_interval_ms"`
	MovementHz         int     `json:"movement_hz"`
}

// Server -> Client. Sent after every decision tick.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Agents       []AgentState `json:"agents"`
	Tasks        []TaskState  `json:"tasks"`
	LoadedChunks int          `json:"loaded_chunks"`
}

type AgentState struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind"`
	Name     string     `json:"name,omitempty"`
	Pos      [2]float64 `json:"pos"`
	Cell     [2]int     `json:"cell"`
	FlipX    bool       `json:"flip_x"`
	Carrying string     `json:"carrying,omitempty"`
	QueueLen int        `json:"queue_len"`
}

type TaskState struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Priority  int      `json:"priority"`
	Owner     string   `json:"owner,omitempty"`
	Targets   [][2]int `json:"targets"`
	Reachable int      `json:"reachable"`
}
