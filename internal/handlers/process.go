package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wastemon/api/internal/middleware"
	"wastemon/api/internal/service"
)

type startRequest struct {
	WasteTypeID int `json:"id_tipo_residuo" binding:"required"`
}

func (h HandlerSet) StartProcess(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "id_tipo_residuo requerido")
		return
	}

	result, err := h.processService.Start(c.Request.Context(), c.GetInt(middleware.CtxUserID), req.WasteTypeID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h HandlerSet) GlobalCost(c *gin.Context) {
	result, err := h.processService.GlobalCost(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type setCostRequest struct {
	CostPerLb float64 `json:"costo_por_libra" binding:"required"`
}

func (h HandlerSet) SetGlobalCost(c *gin.Context) {
	var req setCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "costo_por_libra requerido")
		return
	}

	if err := h.processService.SetGlobalCost(c.Request.Context(), c.GetInt(middleware.CtxUserID), req.CostPerLb); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "costo global actualizado"})
}

type computeRequest struct {
	WasteTypeID int `json:"id_tipo_residuo" binding:"required"`
	ContainerID int `json:"contenedor_id" binding:"required"`
}

func (h HandlerSet) ComputeProcess(c *gin.Context) {
	var req computeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "id_tipo_residuo y contenedor_id son requeridos")
		return
	}

	result, err := h.processService.Compute(c.Request.Context(), c.GetInt(middleware.CtxUserID),
		req.WasteTypeID, req.ContainerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type previewRequest struct {
	EntryID   int     `json:"historial_calculo_id" binding:"required"`
	PendingLb float64 `json:"cantidad_libras_pendientes"`
}

func (h HandlerSet) PreviewPending(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "historial_calculo_id requerido")
		return
	}

	result, err := h.processService.PreviewPending(c.Request.Context(),
		c.GetInt(middleware.CtxUserID), req.EntryID, req.PendingLb)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type commitRequest struct {
	Token         string  `json:"proceso_token" binding:"required"`
	CompanyID     int     `json:"empresa_id" binding:"required"`
	DistrictID    int     `json:"distrito_id" binding:"required"`
	ReceiptNumber string  `json:"numero_recibo" binding:"required"`
	PendingLb     float64 `json:"cantidad_libras_pendientes"`
	Notes         string  `json:"observaciones"`
}

// CommitCollection takes the responsible party from the authenticated session,
// not the body: whoever holds the session signed for the collection.
func (h HandlerSet) CommitCollection(c *gin.Context) {
	var req commitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "proceso_token, empresa_id, distrito_id y numero_recibo son requeridos")
		return
	}

	result, err := h.processService.CommitCollection(c.Request.Context(), c.GetInt(middleware.CtxUserID),
		service.CommitInput{
			Token:         req.Token,
			CompanyID:     req.CompanyID,
			DistrictID:    req.DistrictID,
			ReceiptNumber: req.ReceiptNumber,
			Responsible:   c.GetString(middleware.CtxFullName),
			PendingLb:     req.PendingLb,
			Notes:         req.Notes,
		})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

type cancelRequest struct {
	EntryID int `json:"historial_calculo_id"`
}

func (h HandlerSet) CancelProcess(c *gin.Context) {
	// Body is optional: without it the caller's open process is cancelled.
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.processService.Cancel(c.Request.Context(), c.GetInt(middleware.CtxUserID), req.EntryID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "proceso cancelado"})
}
