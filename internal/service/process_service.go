package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"wastemon/api/internal/apperr"
	"wastemon/api/internal/config"
	"wastemon/api/internal/models"
	"wastemon/api/internal/repository"
	"wastemon/api/internal/security"
)

type ContainerStore interface {
	GetByWasteType(ctx context.Context, wasteTypeID int) (*models.Container, error)
	GetByID(ctx context.Context, id int) (*models.Container, error)
	Governed(ctx context.Context, wasteTypes []int) ([]models.Container, error)
}

type CostStore interface {
	ActiveForContainer(ctx context.Context, containerID int) (*models.CostRecord, error)
	ActiveGlobal(ctx context.Context, wasteTypes []int) (*repository.GlobalCost, error)
	ApplyGlobalCost(ctx context.Context, containerIDs []int, newCost float64, previousCost *float64, userID int) error
}

type ReadingStore interface {
	LatestNormal(ctx context.Context, containerID int) (*models.SensorReading, error)
	BelongsTo(ctx context.Context, readingID, containerID int) (bool, error)
}

type ProcessStore interface {
	OpenForUser(ctx context.Context, userID int) (*models.LedgerEntry, error)
	GetOwned(ctx context.Context, entryID, userID int) (*models.LedgerEntry, error)
	CreateOpen(ctx context.Context, containerID, wasteTypeID, userID int, totalLb, fillPercent float64) (int, error)
	CancelOpen(ctx context.Context, entryID, userID int) (bool, error)
	ReceiptExists(ctx context.Context, receiptNumber string) (bool, error)
	Finalize(ctx context.Context, input repository.FinalizeInput) (collectionID, ledgerID int, err error)
}

// ProcessService drives the collection workflow. Between compute and commit
// the only state is the signed token the client carries; the server holds
// nothing but the EN_PROCESO ledger row.
type ProcessService struct {
	containers ContainerStore
	costs      CostStore
	readings   ReadingStore
	processes  ProcessStore
	codec      *security.ProcessTokenCodec
	cfg        config.ProcessConfig
	log        zerolog.Logger
}

func NewProcessService(
	containers ContainerStore,
	costs CostStore,
	readings ReadingStore,
	processes ProcessStore,
	codec *security.ProcessTokenCodec,
	cfg config.ProcessConfig,
	log zerolog.Logger,
) *ProcessService {
	return &ProcessService{
		containers: containers,
		costs:      costs,
		readings:   readings,
		processes:  processes,
		codec:      codec,
		cfg:        cfg,
		log:        log,
	}
}

type StartResult struct {
	ProcessID     int     `json:"proceso_id"`
	ContainerID   int     `json:"contenedor_id"`
	ContainerCode string  `json:"codigo_contenedor"`
	WasteTypeID   int     `json:"id_tipo_residuo"`
	TotalLb       float64 `json:"total_en_libras"`
	CapacityLb    float64 `json:"capacidad_libras"`
	FillPercent   float64 `json:"porcentaje_llenado"`
}

// Start opens a process for the caller on the container of the given waste
// type. The EN_PROCESO ledger row it inserts is the concurrency anchor: a
// second start by the same user loses on the partial unique index no matter
// how close the race. Sensor corroboration is not required here; that gate
// belongs to Compute.
func (s *ProcessService) Start(ctx context.Context, userID, wasteTypeID int) (*StartResult, error) {
	if !s.governed(wasteTypeID) {
		return nil, apperr.Validation("tipo de residuo no válido")
	}

	container, err := s.resolveContainer(ctx, wasteTypeID)
	if err != nil {
		return nil, err
	}

	fill := fillPercent(container)

	id, err := s.processes.CreateOpen(ctx, container.ID, wasteTypeID, userID, container.CurrentLb, fill)
	if err != nil {
		if errors.Is(err, repository.ErrOpenProcessExists) {
			return nil, apperr.Typed(apperr.KindConflict,
				"ya existe un proceso de recolección en curso para este usuario", "proceso_abierto")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "open process", err)
	}

	s.log.Info().Int("user_id", userID).Int("container_id", container.ID).
		Int("process_id", id).Msg("collection process started")

	return &StartResult{
		ProcessID:     id,
		ContainerID:   container.ID,
		ContainerCode: container.Code,
		WasteTypeID:   wasteTypeID,
		TotalLb:       container.CurrentLb,
		CapacityLb:    container.CapacityLb,
		FillPercent:   fill,
	}, nil
}

type GlobalCostResult struct {
	CostPerLb    float64 `json:"costo_por_libra"`
	CostRecordID int     `json:"costo_vigente_id"`
	ValidFrom    string  `json:"vigente_desde"`
}

func (s *ProcessService) GlobalCost(ctx context.Context) (*GlobalCostResult, error) {
	cost, err := s.costs.ActiveGlobal(ctx, s.cfg.GovernedWasteTypes)
	if err != nil {
		if errors.Is(err, repository.ErrNoActiveCost) {
			return nil, apperr.NotFound("no hay costo global vigente")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load global cost", err)
	}
	return &GlobalCostResult{
		CostPerLb:    cost.CostPerLb,
		CostRecordID: cost.CostRecordID,
		ValidFrom:    cost.ValidFrom.UTC().Format("2006-01-02 15:04:05"),
	}, nil
}

// SetGlobalCost fans the new price out to every governed container in one
// transaction. Any token minted before the change commits against the price
// frozen inside it, not this one.
func (s *ProcessService) SetGlobalCost(ctx context.Context, userID int, newCost float64) error {
	if newCost <= 0 {
		return apperr.Validation("el costo por libra debe ser mayor que cero")
	}

	containers, err := s.containers.Governed(ctx, s.cfg.GovernedWasteTypes)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "load governed containers", err)
	}
	if len(containers) == 0 {
		return apperr.NotFound("no hay contenedores configurados")
	}

	var previous *float64
	if current, err := s.costs.ActiveGlobal(ctx, s.cfg.GovernedWasteTypes); err == nil {
		previous = &current.CostPerLb
	} else if !errors.Is(err, repository.ErrNoActiveCost) {
		return apperr.Wrap(apperr.KindInternal, "load current cost", err)
	}

	ids := make([]int, 0, len(containers))
	for _, c := range containers {
		ids = append(ids, c.ID)
	}

	if err := s.costs.ApplyGlobalCost(ctx, ids, newCost, previous, userID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "apply global cost", err)
	}

	s.log.Info().Int("user_id", userID).Float64("cost_per_lb", newCost).
		Int("containers", len(ids)).Msg("global cost updated")
	return nil
}

type ComputeResult struct {
	Token       string  `json:"proceso_token"`
	ContainerID int     `json:"contenedor_id"`
	TotalLb     float64 `json:"total_en_libras"`
	FillPercent float64 `json:"porcentaje_llenado"`
	CostPerLb   float64 `json:"costo_por_libra_aplicado"`
	TotalCost   float64 `json:"total_costo_q"`
	CostSource  string  `json:"fuente_costo"`
	ReadingID   int     `json:"lectura_id"`
}

// Compute freezes the caller's open process into a signed token: the
// container's current weight, fill, active price and the derived total, with
// the latest sensor reading bound in as corroboration. Without an active
// price the phase fails and no token exists, so commit can never be reached.
func (s *ProcessService) Compute(ctx context.Context, userID, wasteTypeID, containerID int) (*ComputeResult, error) {
	open, err := s.processes.OpenForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "load open process", err)
	}
	if open == nil {
		return nil, apperr.Validation("no hay un proceso de recolección en curso")
	}
	if wasteTypeID != open.WasteTypeID {
		return nil, apperr.Validation("el tipo de residuo no coincide con el proceso en curso")
	}
	if containerID != open.ContainerID {
		return nil, apperr.Validation("el contenedor no coincide con el proceso en curso")
	}

	container, err := s.activeContainer(ctx, open.ContainerID)
	if err != nil {
		return nil, err
	}

	reading, err := s.readings.LatestNormal(ctx, container.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNoReading) {
			return nil, apperr.Validation("no hay lectura de sensor utilizable para el contenedor")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load reading", err)
	}

	cost, err := s.costs.ActiveForContainer(ctx, container.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNoActiveCost) {
			return nil, apperr.Validation("no hay costo vigente para el contenedor")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load cost", err)
	}

	snapshot := security.ProcessSnapshot{
		UserID:       userID,
		ContainerID:  container.ID,
		WasteTypeID:  open.WasteTypeID,
		TotalLb:      container.CurrentLb,
		FillPercent:  fillPercent(container),
		CostRecordID: cost.ID,
		CostPerLb:    cost.CostPerLb,
		TotalCost:    round2(container.CurrentLb * cost.CostPerLb),
		CostSource:   "contenedor",
		ReadingID:    reading.ID,
		ReadingValue: reading.Value,
		ReadingAt:    reading.RecordedAt,
	}

	token, err := s.codec.Encode(snapshot)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "encode process token", err)
	}

	return &ComputeResult{
		Token:       token,
		ContainerID: snapshot.ContainerID,
		TotalLb:     snapshot.TotalLb,
		FillPercent: snapshot.FillPercent,
		CostPerLb:   snapshot.CostPerLb,
		TotalCost:   snapshot.TotalCost,
		CostSource:  snapshot.CostSource,
		ReadingID:   snapshot.ReadingID,
	}, nil
}

type PendingResult struct {
	PendingLb        float64 `json:"cantidad_libras_pendientes"`
	PendingPercent   float64 `json:"porcentaje_pendiente"`
	PercentCollected float64 `json:"porcentaje_recolectado"`
	TotalLb          float64 `json:"total_en_libras"`
}

// PreviewPending derives the pending/collected split against the caller's own
// ledger row, under the same validation commit will apply. The row must still
// be EN_PROCESO; a cancelled or finalized process cannot be previewed. Pure
// read: nothing is written.
func (s *ProcessService) PreviewPending(ctx context.Context, userID, entryID int, pendingLb float64) (*PendingResult, error) {
	if entryID <= 0 {
		return nil, apperr.Validation("historial_calculo_id requerido")
	}

	entry, err := s.processes.GetOwned(ctx, entryID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrLedgerNotFound) {
			return nil, apperr.NotFound("proceso no encontrado")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load ledger entry", err)
	}
	if entry.Status != models.ProcessStatusOpen {
		return nil, apperr.Conflict("el proceso ya no está en curso")
	}

	if err := validatePending(pendingLb, entry.TotalLb); err != nil {
		return nil, err
	}
	if _, err := s.activeContainer(ctx, entry.ContainerID); err != nil {
		return nil, err
	}
	return pendingSplit(entry.TotalLb, pendingLb), nil
}

// CommitInput carries the operator-entered fields of the final phase.
type CommitInput struct {
	Token         string
	CompanyID     int
	DistrictID    int
	ReceiptNumber string
	Responsible   string
	PendingLb     float64
	Notes         string
}

type CommitResult struct {
	CollectionID     int     `json:"recoleccion_id"`
	LedgerID         int     `json:"historial_calculo_id"`
	ReceiptNumber    string  `json:"numero_recibo"`
	TotalLb          float64 `json:"total_en_libras"`
	TotalCost        float64 `json:"total_costo_q"`
	PendingLb        float64 `json:"cantidad_libras_pendientes"`
	PendingPercent   float64 `json:"porcentaje_pendiente"`
	PercentCollected float64 `json:"porcentaje_recolectado"`
}

// CommitCollection closes the saga. Everything priced or measured comes from
// the token; the live database is consulted only to re-validate that the
// referenced container and reading still make sense.
func (s *ProcessService) CommitCollection(ctx context.Context, userID int, input CommitInput) (*CommitResult, error) {
	snapshot, err := s.decodeFor(userID, input.Token)
	if err != nil {
		return nil, err
	}

	input.ReceiptNumber = strings.TrimSpace(input.ReceiptNumber)
	input.Responsible = strings.TrimSpace(input.Responsible)
	switch {
	case input.ReceiptNumber == "":
		return nil, apperr.Validation("el número de recibo es requerido")
	case input.Responsible == "":
		return nil, apperr.Validation("el responsable es requerido")
	case input.CompanyID <= 0 || input.DistrictID <= 0:
		return nil, apperr.Validation("empresa y distrito son requeridos")
	}
	if err := validatePending(input.PendingLb, snapshot.TotalLb); err != nil {
		return nil, err
	}

	if _, err := s.activeContainer(ctx, snapshot.ContainerID); err != nil {
		return nil, err
	}

	ok, err := s.readings.BelongsTo(ctx, snapshot.ReadingID, snapshot.ContainerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "check reading", err)
	}
	if !ok {
		return nil, apperr.Conflict("la lectura del proceso ya no es válida, recalcule el proceso")
	}

	if exists, err := s.processes.ReceiptExists(ctx, input.ReceiptNumber); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "check receipt", err)
	} else if exists {
		return nil, apperr.Conflict("el número de recibo ya está registrado")
	}

	split := pendingSplit(snapshot.TotalLb, input.PendingLb)

	collectionID, ledgerID, err := s.processes.Finalize(ctx, repository.FinalizeInput{
		UserID:           userID,
		ContainerID:      snapshot.ContainerID,
		WasteTypeID:      snapshot.WasteTypeID,
		CompanyID:        input.CompanyID,
		DistrictID:       input.DistrictID,
		ReceiptNumber:    input.ReceiptNumber,
		Responsible:      input.Responsible,
		PendingLb:        input.PendingLb,
		PendingPercent:   split.PendingPercent,
		PercentCollected: split.PercentCollected,
		Notes:            input.Notes,

		TotalLb:      snapshot.TotalLb,
		FillPercent:  snapshot.FillPercent,
		CostPerLb:    snapshot.CostPerLb,
		TotalCost:    snapshot.TotalCost,
		CostSource:   snapshot.CostSource,
		CostRecordID: snapshot.CostRecordID,
		ReadingID:    snapshot.ReadingID,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateReceipt):
			return nil, apperr.Conflict("el número de recibo ya está registrado")
		case errors.Is(err, repository.ErrNoOpenProcess):
			return nil, apperr.Validation("no hay un proceso de recolección en curso")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "finalize process", err)
	}

	s.log.Info().Int("user_id", userID).Int("collection_id", collectionID).
		Str("receipt", input.ReceiptNumber).Float64("total_cost", snapshot.TotalCost).
		Msg("collection committed")

	return &CommitResult{
		CollectionID:     collectionID,
		LedgerID:         ledgerID,
		ReceiptNumber:    input.ReceiptNumber,
		TotalLb:          snapshot.TotalLb,
		TotalCost:        snapshot.TotalCost,
		PendingLb:        input.PendingLb,
		PendingPercent:   split.PendingPercent,
		PercentCollected: split.PercentCollected,
	}, nil
}

// Cancel abandons the caller's open process. With entryID zero the open row
// is resolved from the caller. Any token minted for the process is left to
// die of expiry; with the open row gone it can no longer commit.
func (s *ProcessService) Cancel(ctx context.Context, userID, entryID int) error {
	if entryID == 0 {
		open, err := s.processes.OpenForUser(ctx, userID)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "load open process", err)
		}
		if open == nil {
			return apperr.Validation("no hay un proceso de recolección en curso")
		}
		entryID = open.ID
	}

	done, err := s.processes.CancelOpen(ctx, entryID, userID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "cancel process", err)
	}
	if !done {
		return apperr.Conflict("el proceso ya no está en curso")
	}

	s.log.Info().Int("user_id", userID).Int("process_id", entryID).Msg("collection process cancelled")
	return nil
}

// activeContainer re-reads a container and converts "gone or inactive" into
// the recompute conflict the workflow hands back for stale state.
func (s *ProcessService) activeContainer(ctx context.Context, containerID int) (*models.Container, error) {
	container, err := s.containers.GetByID(ctx, containerID)
	if err != nil {
		if errors.Is(err, repository.ErrContainerNotFound) {
			return nil, apperr.Conflict("el contenedor del proceso ya no existe")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load container", err)
	}
	if container.Inactive() {
		return nil, apperr.Conflict("el contenedor no está activo")
	}
	return container, nil
}

func (s *ProcessService) resolveContainer(ctx context.Context, wasteTypeID int) (*models.Container, error) {
	container, err := s.containers.GetByWasteType(ctx, wasteTypeID)
	if err != nil {
		if errors.Is(err, repository.ErrContainerNotFound) {
			return nil, apperr.NotFound("no hay contenedor para el tipo de residuo")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load container", err)
	}
	if container.Inactive() {
		return nil, apperr.Conflict("el contenedor no está activo")
	}
	return container, nil
}

// decodeFor verifies the token and that it belongs to the caller. A valid
// token presented by a different user is a hard 403, not a validation error.
func (s *ProcessService) decodeFor(userID int, token string) (*security.ProcessSnapshot, error) {
	if token == "" {
		return nil, apperr.Validation("token de proceso requerido")
	}
	snapshot, err := s.codec.Decode(token)
	if err != nil {
		return nil, apperr.Typed(apperr.KindAuth,
			"el token de proceso es inválido o ha expirado", "token_invalido")
	}
	if snapshot.UserID != userID {
		return nil, apperr.Forbidden("el token de proceso pertenece a otro usuario")
	}
	return snapshot, nil
}

func (s *ProcessService) governed(wasteTypeID int) bool {
	for _, id := range s.cfg.GovernedWasteTypes {
		if id == wasteTypeID {
			return true
		}
	}
	return false
}

// fillPercent derives fill from the liter readings, clamped to [0, 100]. A
// zero-capacity container reads as empty rather than dividing by zero.
func fillPercent(c *models.Container) float64 {
	if c.CapacityLiters <= 0 {
		return 0
	}
	return round2(clamp0to100(c.CurrentLiters / c.CapacityLiters * 100))
}

// pendingSplit derives the pending/collected percentages. A zero weight basis
// always reads as zero percent pending, whatever the pending pounds say.
func pendingSplit(totalLb, pendingLb float64) *PendingResult {
	var pendingPct float64
	if totalLb > 0 {
		pendingPct = clamp0to100(pendingLb / totalLb * 100)
	}
	pendingPct = round2(pendingPct)
	return &PendingResult{
		PendingLb:        pendingLb,
		PendingPercent:   pendingPct,
		PercentCollected: round2(100 - pendingPct),
		TotalLb:          totalLb,
	}
}

// validatePending rejects impossible pending weights instead of silently
// adjusting them: a negative value or one above the frozen total means the
// caller sent bad data, not that the split should be clamped.
func validatePending(pendingLb, totalLb float64) error {
	if pendingLb < 0 {
		return apperr.Validation("las libras pendientes no pueden ser negativas")
	}
	if totalLb > 0 && pendingLb > totalLb {
		return apperr.Validation("las libras pendientes no pueden exceder el total del proceso")
	}
	return nil
}

func clamp0to100(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
