package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coursehub/internal/access"
	"coursehub/internal/auth"
	"coursehub/internal/catalog"
	"coursehub/internal/models"
	"coursehub/internal/service/account"
	"coursehub/internal/service/course"
	"coursehub/internal/service/enrollment"
)

// Handler wires HTTP routes to the course hub services.
type Handler struct {
	accounts    *account.Service
	auth        *auth.Service
	courses     *course.Service
	enrollments *enrollment.Service
	catalog     *catalog.Loader
	gate        access.Gate
	sections    access.Sections
}

// NewHandler constructs a Handler instance.
func NewHandler(
	accounts *account.Service,
	authService *auth.Service,
	courses *course.Service,
	enrollments *enrollment.Service,
	loader *catalog.Loader,
	gate access.Gate,
	sections access.Sections,
) *Handler {
	return &Handler{
		accounts:    accounts,
		auth:        authService,
		courses:     courses,
		enrollments: enrollments,
		catalog:     loader,
		gate:        gate,
		sections:    sections,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.Use(h.auth.SessionMiddleware())
	api.GET("/health", h.health)

	loginMW := h.gate.LoginRequired()
	csrfMW := h.auth.CSRFMiddleware()
	studentMW := h.gate.Guard(models.RoleStudent)

	api.POST("/auth/register", h.registerUser)
	api.POST("/auth/login", h.loginUser)
	api.POST("/auth/refresh", loginMW, csrfMW, h.refreshToken)
	api.POST("/auth/logout", loginMW, csrfMW, h.logoutUser)
	api.GET("/auth/me", loginMW, h.currentUser)
	api.DELETE("/auth/me", loginMW, csrfMW, h.deleteUser)

	api.GET("/courses", h.listCourses)
	api.GET("/courses/search", h.searchCourses)
	api.GET("/courses/categories", h.listCategories)
	api.GET("/courses/:id", h.getCourse)
	// instructors manage their own courses and admins manage any; the course
	// service decides, so these routes only require a session
	api.POST("/courses", loginMW, csrfMW, h.createCourse)
	api.PUT("/courses/:id", loginMW, csrfMW, h.updateCourse)
	api.DELETE("/courses/:id", loginMW, csrfMW, h.deleteCourse)

	api.POST("/enrollments", studentMW, csrfMW, h.enroll)
	api.POST("/enrollments/progress", studentMW, csrfMW, h.updateProgress)
	api.GET("/enrollments", loginMW, h.listEnrollments)
	api.GET("/enrollments/:id", loginMW, h.getEnrollment)
	api.GET("/enrollments/:id/progress", loginMW, h.getProgress)
	api.GET("/enrollments/:id/certificate", loginMW, h.getCertificate)
	api.PATCH("/enrollments/:id", loginMW, csrfMW, h.setEnrollmentStatus)

	api.GET("/dashboard", h.sectionGuard("dashboard"), h.dashboard)
	api.GET("/admin", h.sectionGuard("admin"), h.adminOverview)
	api.GET("/access/sections/:section", h.checkSection)
}

func (h *Handler) health(c *gin.Context) {
	snapshot := h.catalog.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"catalogVersion": snapshot.Version(),
		"catalogCourses": snapshot.Len(),
	})
}

// viewer returns the signed-in user; guards guarantee it on protected routes.
func viewer(c *gin.Context) *models.User {
	return access.SessionFromContext(c).User
}

func (h *Handler) sectionGuard(section string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := h.sections.Lookup(section)
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown section"})
			return
		}
		h.gate.Guard(role)(c)
	}
}

func (h *Handler) checkSection(c *gin.Context) {
	name := c.Param("section")
	role, ok := h.sections.Lookup(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown section"})
		return
	}
	decision := h.gate.Authorize(access.SessionFromContext(c), role)
	c.JSON(http.StatusOK, gin.H{
		"section":      name,
		"requiredRole": role,
		"decision":     decision.String(),
		"redirect":     decision.Redirect(),
	})
}
