package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// RegisterTimetableRoutes mounts the timetable API. Every route needs a bearer token;
// mutations are limited to administrators and teachers may read their own week.
func RegisterTimetableRoutes(api gin.IRouter, h *TimetableHandler, tokens middleware.TokenValidator) {
	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))

	manage := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	read := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin, models.RoleTeacher, models.RoleStudent)
	ownWeek := middleware.RBAC(string(models.RoleAdmin), string(models.RoleSuperAdmin), middleware.Self)

	secured.POST("/sections/:id/timetable/generate", manage, h.Generate)
	secured.GET("/sections/:id/timetable", read, h.SectionTimetable)
	secured.GET("/sections/:id/timetable/export", read, h.Export)
	secured.GET("/teachers/:id/timetable", ownWeek, h.TeacherTimetable)

	secured.GET("/timetable/availability", manage, h.Availability)
	secured.POST("/timetable/entries", manage, h.CreateEntry)
	secured.PUT("/timetable/entries/:id", manage, h.UpdateEntry)
	secured.POST("/timetable/entries/:id/cancel", manage, h.CancelEntry)
}

// RegisterOpsRoutes mounts health, readiness and metrics endpoints outside the API prefix.
func RegisterOpsRoutes(r gin.IRouter, h *MetricsHandler) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)
	r.GET("/metrics/summary", h.Summary)
}
