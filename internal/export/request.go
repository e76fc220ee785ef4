package export

import (
	"fmt"
	"strings"
)

// Format identifies the output encoding of an export artifact
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat normalizes the requested format. Empty selects CSV;
// anything else outside the closed set is rejected.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unknown format %q (valid formats: csv, xlsx)", s)
	}
}

// Extension returns the artifact file extension for the format
func (f Format) Extension() string {
	if f == FormatXLSX {
		return "xlsx"
	}
	return "csv"
}

// ContentType returns the artifact MIME type for the format
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Request is the normalized description of one export: the movement
// filter plus output options, exactly as the worker will run it.
type Request struct {
	Query     string   `json:"query,omitempty"`
	Type      string   `json:"type,omitempty"`
	Yard      string   `json:"yard,omitempty"`
	DateFrom  string   `json:"date_from,omitempty"`
	DateTo    string   `json:"date_to,omitempty"`
	HasDamage bool     `json:"has_damage,omitempty"`
	HasSeal   bool     `json:"has_seal,omitempty"`
	Sort      string   `json:"sort,omitempty"`
	Dir       string   `json:"dir,omitempty"`
	Format    Format   `json:"format"`
	Columns   []Column `json:"columns"`
	FileName  string   `json:"file_name,omitempty"`
	Page      int      `json:"page,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

// Message is the queue payload carrying one export job from submission
// to a worker.
type Message struct {
	JobID   string   `json:"job_id"`
	Request *Request `json:"request"`
}
