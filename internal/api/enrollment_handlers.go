package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"coursehub/internal/models"
	"coursehub/internal/service/enrollment"
)

type enrollRequest struct {
	CourseID string `json:"courseId"`
}

type statusRequest struct {
	Status models.EnrollmentStatus `json:"status"`
}

func (h *Handler) enroll(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CourseID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "courseId is required"})
		return
	}
	e, err := h.enrollments.Enroll(c.Request.Context(), viewer(c).ID, req.CourseID)
	if err != nil {
		writeEnrollmentError(c, err)
		return
	}
	h.refreshCatalog(c)
	c.JSON(http.StatusCreated, e)
}

// refreshCatalog picks up the new enrollment count.
func (h *Handler) refreshCatalog(c *gin.Context) {
	if err := h.catalog.Invalidate(c.Request.Context()); err != nil {
		log.Printf("catalog refresh after enrollment failed: %v", err)
	}
}

// ownsCourse reports whether the user manages the course.
func (h *Handler) ownsCourse(user *models.User, courseID string) bool {
	if user.Role == models.RoleAdmin {
		return true
	}
	found, ok := h.catalog.Snapshot().Find(courseID)
	return ok && user.Role == models.RoleInstructor && found.Instructor.ID == user.ID
}

func (h *Handler) canView(user *models.User, e *models.Enrollment) bool {
	return e.StudentID == user.ID || h.ownsCourse(user, e.CourseID)
}

// loadEnrollment fetches the path enrollment and checks the viewer may see it.
func (h *Handler) loadEnrollment(c *gin.Context) (*models.Enrollment, bool) {
	e, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeEnrollmentError(c, err)
		return nil, false
	}
	if !h.canView(viewer(c), e) {
		// do not reveal other students' enrollments
		c.JSON(http.StatusNotFound, gin.H{"error": enrollment.ErrNotFound.Error()})
		return nil, false
	}
	return e, true
}

func (h *Handler) listEnrollments(c *gin.Context) {
	user := viewer(c)
	studentID := c.Query("studentId")
	courseID := c.Query("courseId")
	ctx := c.Request.Context()

	var (
		list []models.Enrollment
		err  error
	)
	switch {
	case courseID != "":
		if !h.ownsCourse(user, courseID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your course"})
			return
		}
		list, err = h.enrollments.ListByCourse(ctx, courseID)
	case studentID != "" && studentID != user.ID && user.Role != models.RoleAdmin:
		c.JSON(http.StatusForbidden, gin.H{"error": "not your enrollments"})
		return
	default:
		if studentID == "" {
			studentID = user.ID
		}
		list, err = h.enrollments.ListByStudent(ctx, studentID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enrollments": list})
}

func (h *Handler) getEnrollment(c *gin.Context) {
	e, ok := h.loadEnrollment(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) getProgress(c *gin.Context) {
	e, ok := h.loadEnrollment(c)
	if !ok {
		return
	}
	p, err := h.enrollments.Progress(c.Request.Context(), e.ID)
	if err != nil {
		writeEnrollmentError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) getCertificate(c *gin.Context) {
	e, ok := h.loadEnrollment(c)
	if !ok {
		return
	}
	text, err := h.enrollments.Certificate(c.Request.Context(), e.ID)
	if err != nil {
		writeEnrollmentError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="certificate-`+e.ID+`.txt"`)
	c.String(http.StatusOK, text)
}

func (h *Handler) setEnrollmentStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	e, ok := h.loadEnrollment(c)
	if !ok {
		return
	}
	user := viewer(c)
	// students may drop their own enrollment and resume it only after a drop;
	// a suspended enrollment stays put until the course's instructor lifts it
	selfService := e.Status != models.EnrollmentSuspended &&
		(req.Status == models.EnrollmentDropped ||
			(req.Status == models.EnrollmentActive && e.Status == models.EnrollmentDropped))
	if !h.ownsCourse(user, e.CourseID) && !(selfService && e.StudentID == user.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "status change not allowed"})
		return
	}
	updated, err := h.enrollments.SetStatus(c.Request.Context(), e.ID, req.Status)
	if err != nil {
		writeEnrollmentError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) updateProgress(c *gin.Context) {
	var req enrollment.ProgressUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	e, err := h.enrollments.Get(c.Request.Context(), req.EnrollmentID)
	if err != nil {
		writeEnrollmentError(c, err)
		return
	}
	if e.StudentID != viewer(c).ID {
		c.JSON(http.StatusNotFound, gin.H{"error": enrollment.ErrNotFound.Error()})
		return
	}
	p, err := h.enrollments.UpdateProgress(c.Request.Context(), req)
	if err != nil {
		writeEnrollmentError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func writeEnrollmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, enrollment.ErrNotFound),
		errors.Is(err, enrollment.ErrCourseNotFound),
		errors.Is(err, enrollment.ErrLessonNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, enrollment.ErrAlreadyEnrolled),
		errors.Is(err, enrollment.ErrNotActive),
		errors.Is(err, enrollment.ErrNotCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, enrollment.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
