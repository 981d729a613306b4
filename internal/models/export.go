package models

// ExportSnapshot freezes the exact filters a user searched with, so a later
// download reproduces the same rows. Kept in Redis under a TTL; never stored
// past its expiry.
type ExportSnapshot struct {
	ExportID string            `json:"export_id"`
	UserID   int               `json:"user_id"`
	Module   string            `json:"module"`
	Filters  map[string]string `json:"filters"`
}

type ExportAudit struct {
	UserID       int
	Username     string
	RoleName     string
	Module       string
	Report       string
	Format       string
	ExportID     string
	Filters      map[string]string
	RowCount     int
	Status       string
	ErrorMessage string
	IPAddress    string
	UserAgent    string
}
