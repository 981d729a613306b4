package models

import "time"

type ProcessStatus string

const (
	ProcessStatusOpen      ProcessStatus = "EN_PROCESO"
	ProcessStatusFinalized ProcessStatus = "FINALIZADO"
	ProcessStatusCancelled ProcessStatus = "CANCELADO"
)

// CollectionRecord is the persisted result of a committed process. Immutable
// after insert; there is no update or delete path.
type CollectionRecord struct {
	ID             int
	ContainerID    int
	UserID         int
	CompanyID      int
	DistrictID     int
	CollectedAt    time.Time
	ReceiptNumber  string
	Responsible    string
	PendingPercent float64
	PendingLb      float64
	Notes          string
}

// LedgerEntry is one row of cost_calc_history: the durable trace of a
// collection process, from EN_PROCESO through its terminal state.
type LedgerEntry struct {
	ID               int
	ContainerID      int
	WasteTypeID      int
	CalculatedBy     int
	CollectionID     *int
	TotalLb          float64
	PercentCollected *float64
	FillPercent      *float64
	CostPerLb        *float64
	TotalCost        *float64
	CostSource       string
	CostRecordID     *int
	ReadingID        *int
	CalculatedAt     time.Time
	Notes            string
	Status           ProcessStatus
}
