package bridge

import (
	"encoding/json"
	"log"
)

// Frame types exchanged with the native host.
const (
	TipoExec   = "exec"
	TipoResult = "result"

	StatusSuccess = "success"
	StatusError   = "error"
)

// Request asks the native host to run one capability.
type Request struct {
	Tipo    string `json:"tipo"`
	ID      string `json:"id"`
	Service string `json:"service"`
	Action  string `json:"action"`
	Args    []any  `json:"args"`
}

// Response carries the outcome of a Request with the same ID.
type Response struct {
	Tipo   string          `json:"tipo"`
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Datos  json.RawMessage `json:"datos,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// decodeResult turns the datos field into a plain Go value (nil when absent).
func decodeResult(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Printf("[BRIDGE] ⚠️ Undecodable result payload: %v", err)
		return nil
	}
	return v
}

// decodeFailure returns the error payload; null or absent yields nil so the
// caller sees a transmission error.
func decodeFailure(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Printf("[BRIDGE] ⚠️ Undecodable error payload: %v", err)
		return nil
	}
	return v
}
