package models

// CollectionDetail is one row of the history search detail table.
type CollectionDetail struct {
	CollectionID   int     `json:"recoleccion_id"`
	ContainerCode  string  `json:"codigo"`
	CollectedAt    string  `json:"fecha"`
	District       string  `json:"distrito"`
	WasteType      string  `json:"tipo_residuo"`
	ReceiptNumber  string  `json:"numero_recibo"`
	Responsible    string  `json:"responsable"`
	Company        string  `json:"empresa_recolectora"`
	PendingPercent float64 `json:"porcentaje_pendiente"`
	PendingLb      float64 `json:"cantidad_libras_pendientes"`
	Notes          string  `json:"observaciones"`
}

// WeighingRow mirrors the detail table row-for-row with the ledger numbers
// frozen at commit time.
type WeighingRow struct {
	CollectionID     int      `json:"recoleccion_id"`
	TotalLb          *float64 `json:"total_en_libras"`
	PercentCollected *float64 `json:"porcentaje_recolectado"`
	FillPercent      *float64 `json:"porcentaje_llenado"`
	CostPerLb        *float64 `json:"costo_por_libra_aplicado"`
	TotalCost        *float64 `json:"total_costo_q"`
}
