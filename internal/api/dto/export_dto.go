package dto

// SubmitExportRequest is the POST /api/v1/exports body. The filter
// fields mirror the browse endpoint; format, columns, and fileName shape
// the artifact; page and limit optionally window the result.
type SubmitExportRequest struct {
	Query     string `json:"query"`
	Type      string `json:"type"`
	Yard      string `json:"yard"`
	DateFrom  string `json:"dateFrom"`
	DateTo    string `json:"dateTo"`
	HasDamage bool   `json:"hasDamage"`
	HasSeal   bool   `json:"hasSeal"`
	Sort      string `json:"sort"`
	Dir       string `json:"dir"`
	Format    string `json:"format"`
	Columns   string `json:"columns"`
	FileName  string `json:"fileName"`
	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
}

// SubmitExportResponse acknowledges an accepted export job. The client
// polls statusUrl until the record reports DONE or ERROR.
type SubmitExportResponse struct {
	JobID     string `json:"jobId"`
	StatusURL string `json:"statusUrl"`
}
