package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coursehub/internal/models"
)

// dashboard summarises the signed-in student's learning.
func (h *Handler) dashboard(c *gin.Context) {
	user := viewer(c)
	list, err := h.enrollments.ListByStudent(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var active, completed int
	for _, e := range list {
		switch e.Status {
		case models.EnrollmentActive:
			active++
		case models.EnrollmentCompleted:
			completed++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"user":        user,
		"enrollments": list,
		"active":      active,
		"completed":   completed,
	})
}

type courseStats struct {
	Course      models.Course `json:"course"`
	Enrollments int           `json:"enrollments"`
	Completed   int           `json:"completed"`
}

// adminOverview lists the courses the viewer manages with enrollment counts.
func (h *Handler) adminOverview(c *gin.Context) {
	user := viewer(c)
	stats := make([]courseStats, 0)
	for _, item := range h.catalog.Snapshot().Courses() {
		if user.Role != models.RoleAdmin && item.Instructor.ID != user.ID {
			continue
		}
		list, err := h.enrollments.ListByCourse(c.Request.Context(), item.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		entry := courseStats{Course: item, Enrollments: len(list)}
		for _, e := range list {
			if e.Status == models.EnrollmentCompleted {
				entry.Completed++
			}
		}
		stats = append(stats, entry)
	}
	c.JSON(http.StatusOK, gin.H{
		"user":    user,
		"courses": stats,
	})
}
