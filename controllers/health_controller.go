package controllers

import "net/http"

// HealthController informa que el proceso está arriba y qué servicios publica.
type HealthController struct {
	BaseController
	Modules []string
}

// Get
// @Summary Estado del servicio
// @Success 200 {object} requestresponse.APIResponseDTO
func (c *HealthController) Get() {
	c.RespondSuccess(http.StatusOK, "servicio disponible", map[string]interface{}{
		"status":  "ok",
		"modules": c.Modules,
	})
}
