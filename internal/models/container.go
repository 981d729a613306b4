package models

import "time"

// Container lifecycle states as seeded in container_states.
const (
	ContainerStateActive   = 1
	ContainerStateInactive = 2
)

// Readings usable by the workflow.
const (
	ReadingSourceSensor  = "sensor"
	ReadingQualityNormal = "normal"
)

type Container struct {
	ID             int
	Code           string
	WasteTypeID    int
	StateID        int
	StateName      string
	CurrentLiters  float64
	CapacityLiters float64
	CurrentLb      float64
	CapacityLb     float64
}

func (c Container) Inactive() bool {
	return c.StateID == ContainerStateInactive
}

// CostRecord is one row of the append-only per-container cost versioning;
// "current" is the single row with Active = true.
type CostRecord struct {
	ID          int
	ContainerID int
	CostPerLb   float64
	Active      bool
	ValidFrom   time.Time
	ValidUntil  *time.Time
}

type SensorReading struct {
	ID          int
	ContainerID int
	Value       float64
	RecordedAt  time.Time
	Source      string
	Quality     string
}
