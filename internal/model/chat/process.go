package chat

// ProcessRequest is the body of POST /process.
type ProcessRequest struct {
	Command   string `json:"command"`
	SessionID string `json:"session_id"`
}

// ProcessResponse is returned by POST /process. Error is set only when
// Success is false.
type ProcessResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response,omitempty"`
	Intent   string `json:"intent,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ClearResponse is returned by POST /clear/{sessionID}.
type ClearResponse struct {
	Success bool `json:"success"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	AIEnabled bool   `json:"ai_enabled"`
}
