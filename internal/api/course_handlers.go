package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"coursehub/internal/catalog"
	"coursehub/internal/models"
	"coursehub/internal/service/course"
)

// Course reads are served from the in-memory catalog snapshot.

func (h *Handler) listCourses(c *gin.Context) {
	var criteria catalog.Criteria
	if err := c.ShouldBindQuery(&criteria); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter"})
		return
	}
	courses := h.catalog.Snapshot().Filter(criteria)
	if featured, err := strconv.ParseBool(c.Query("featured")); err == nil && featured {
		courses = catalog.FeaturedOnly(courses)
	}
	c.JSON(http.StatusOK, gin.H{
		"courses": courses,
		"total":   len(courses),
	})
}

func (h *Handler) searchCourses(c *gin.Context) {
	courses := h.catalog.Snapshot().Filter(catalog.Criteria{Query: c.Query("q")})
	c.JSON(http.StatusOK, gin.H{
		"courses": courses,
		"total":   len(courses),
	})
}

func (h *Handler) listCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.catalog.Snapshot().Categories()})
}

func (h *Handler) getCourse(c *gin.Context) {
	found, ok := h.catalog.Snapshot().Find(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "course not found"})
		return
	}
	if user := viewer(c); user != nil && user.Role == models.RoleStudent {
		h.markCompletedLessons(c, user.ID, &found)
	}
	c.JSON(http.StatusOK, found)
}

// markCompletedLessons flags the syllabus entries the student already finished.
func (h *Handler) markCompletedLessons(c *gin.Context, studentID string, target *models.Course) {
	ctx := c.Request.Context()
	mine, err := h.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		log.Printf("list enrollments for syllabus failed: %v", err)
		return
	}
	for _, e := range mine {
		if e.CourseID != target.ID {
			continue
		}
		done, err := h.enrollments.CompletedLessons(ctx, e.ID)
		if err != nil {
			log.Printf("load completed lessons failed: %v", err)
			return
		}
		// the snapshot shares lesson slices; copy before marking
		syllabus := make([]models.Lesson, len(target.Syllabus))
		copy(syllabus, target.Syllabus)
		for i := range syllabus {
			syllabus[i].Completed = done[syllabus[i].ID]
		}
		target.Syllabus = syllabus
		return
	}
}

func (h *Handler) createCourse(c *gin.Context) {
	var req course.CourseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	created, err := h.courses.CreateCourse(c.Request.Context(), viewer(c), req)
	if err != nil {
		writeCourseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) updateCourse(c *gin.Context) {
	var req course.CoursePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	updated, err := h.courses.UpdateCourse(c.Request.Context(), viewer(c), c.Param("id"), req)
	if err != nil {
		writeCourseError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteCourse(c *gin.Context) {
	if err := h.courses.DeleteCourse(c.Request.Context(), viewer(c), c.Param("id")); err != nil {
		writeCourseError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeCourseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, course.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, course.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
