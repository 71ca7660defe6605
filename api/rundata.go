package api

// RuntimeData contains execution information for a compile or run (streaming version)
type RuntimeData struct {
	Stdout   string `json:"out"`
	Stderr   string `json:"err"`
	ExitCode int64  `json:"exit"`

	WallMillis int64 `json:"wall_ms"`
	RamKiBytes int64 `json:"ram_kib"`

	ExitSignal *int64 `json:"signal"`
	TimedOut   bool   `json:"timed_out"`
	Truncated  bool   `json:"truncated"`
}
