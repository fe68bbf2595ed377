package models

// Model status values reported by the models endpoint.
const (
	StatusAvailable   = "available"
	StatusDownloading = "downloading"
	StatusNotFound    = "not_available"
	StatusError       = "error"
)

// ModelInfo describes a model known to the server.
type ModelInfo struct {
	Name         string   `json:"name"`
	DisplayName  string   `json:"display_name"`
	Status       string   `json:"status"`
	SizeGB       float64  `json:"size_gb"`
	Provider     string   `json:"provider"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Available reports whether the model can serve requests.
func (m ModelInfo) Available() bool {
	return m.Status == StatusAvailable
}

// Label returns the display name, falling back to the model name.
func (m ModelInfo) Label() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Name
}

// DownloadTicket is the acknowledgement for a queued model download.
type DownloadTicket struct {
	Model   string `json:"model"`
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DownloadStatus reports progress of a model download.
// Progress is a percentage; the server sends null before a download starts.
type DownloadStatus struct {
	Model       string  `json:"model"`
	Status      string  `json:"status"`
	Progress    float64 `json:"progress"`
	LastUpdated string  `json:"last_updated,omitempty"`
}

// Fraction returns Progress scaled to [0, 1].
func (s DownloadStatus) Fraction() float64 {
	f := s.Progress / 100
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// TestResult is the outcome of a server-side model smoke test.
type TestResult struct {
	Model      string `json:"model"`
	TestPassed bool   `json:"test_passed"`
	Message    string `json:"message"`
}

// SystemInfo describes the host running the API server.
type SystemInfo struct {
	Platform        string  `json:"platform"`
	PythonVersion   string  `json:"python_version"`
	TorchVersion    string  `json:"torch_version"`
	CPUCount        int     `json:"cpu_count"`
	MemoryTotal     float64 `json:"memory_total"`
	MemoryAvailable float64 `json:"memory_available"`
}
