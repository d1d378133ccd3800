package api

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port   int
	APIKey string
}

// InspectResponse is the envelope identity of an uploaded container:
// everything the service learns without decoding record bodies.
type InspectResponse struct {
	Format      string         `json:"format"`
	Version     string         `json:"version"`
	Vendor      string         `json:"vendor,omitempty"`
	NumRecords  int            `json:"num_records"`
	RecordTypes map[string]int `json:"record_types,omitempty"`
	SizeBytes   int64          `json:"size_bytes"`
}

// RecordNode is one record in a dump tree. A record referenced from two
// places appears twice; only its first appearance lists children.
type RecordNode struct {
	Type     string       `json:"type"`
	Name     string       `json:"name,omitempty"`
	Size     int64        `json:"size,omitempty"`
	Children []RecordNode `json:"children,omitempty"`
}

// WarningInfo is one integrity warning in API form.
type WarningInfo struct {
	Kind    string `json:"kind"`
	Block   int    `json:"block"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// DumpResponse is the full decode of an uploaded container.
type DumpResponse struct {
	Format   string        `json:"format"`
	Version  string        `json:"version"`
	Vendor   string        `json:"vendor,omitempty"`
	Roots    []RecordNode  `json:"roots"`
	Warnings []WarningInfo `json:"warnings,omitempty"`
}

// FormatInfo describes one registered container family.
type FormatInfo struct {
	Name       string   `json:"name"`
	Extensions []string `json:"extensions"`
	Versions   []string `json:"versions"`
}

// StatsResponse reports the service counters since start.
type StatsResponse struct {
	UptimeSeconds    int64 `json:"uptime_seconds"`
	FilesInspected   int64 `json:"files_inspected"`
	FilesDumped      int64 `json:"files_dumped"`
	BytesParsed      int64 `json:"bytes_parsed"`
	WarningsObserved int64 `json:"warnings_observed"`
	ParseFailures    int64 `json:"parse_failures"`
}
