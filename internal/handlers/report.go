package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wastemon/api/internal/middleware"
	"wastemon/api/internal/service"
)

func (h HandlerSet) SearchHistory(c *gin.Context) {
	params := service.SearchParams{
		SearchBy:    c.Query("buscar_por"),
		SearchValue: c.Query("valor"),
		DateFrom:    c.Query("fecha_inicio"),
		DateTo:      c.Query("fecha_fin"),
		Order:       c.Query("orden"),
		Page:        queryInt(c, "pagina"),
		PageSize:    queryInt(c, "por_pagina"),
	}

	result, err := h.reportService.Search(c.Request.Context(), c.GetInt(middleware.CtxUserID), params)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h HandlerSet) ExportHistoryPDF(c *gin.Context) {
	h.exportHistory(c, "pdf")
}

func (h HandlerSet) ExportHistoryExcel(c *gin.Context) {
	h.exportHistory(c, "excel")
}

func (h HandlerSet) exportHistory(c *gin.Context, format string) {
	who := service.Identity{
		UserID:    c.GetInt(middleware.CtxUserID),
		Username:  c.GetString(middleware.CtxUsername),
		RoleName:  c.GetString(middleware.CtxRoleName),
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}

	artifact, err := h.reportService.Export(c.Request.Context(), who, c.Query("export_id"), format)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+artifact.FileName+`"`)
	c.Data(http.StatusOK, artifact.ContentType, artifact.Data)
}

func queryInt(c *gin.Context, name string) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return v
}
