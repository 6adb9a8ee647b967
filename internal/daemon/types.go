package daemon

// HealthResponse representa el estado de salud del servicio.
type HealthResponse struct {
	Status  string       `json:"status"`
	Bridge  BridgeStatus `json:"bridge"`
	Clients int          `json:"clients"`
	Build   BuildInfo    `json:"build"`
	Uptime  int          `json:"uptime_seconds"`
	LogSize int64        `json:"log_size_bytes"`
}

// BridgeStatus representa el enlace con el host nativo del SDK.
type BridgeStatus struct {
	URL       string `json:"url"`
	Connected bool   `json:"connected"`
	Pending   int    `json:"pending"`
}

// BuildInfo contiene información sobre la compilación del servicio.
type BuildInfo struct {
	Env  string `json:"env"`
	Date string `json:"date"`
	Time string `json:"time"`
}
