// Package httpapi exposes the conference backend over HTTP with gin.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"conference/internal/auth"
	"conference/internal/clock"
	"conference/internal/hub"
	"conference/internal/httpmiddleware"
	"conference/internal/keylock"
	"conference/internal/livestream"
	"conference/internal/logger"
	"conference/internal/recorder"
	"conference/internal/subject"
	"conference/internal/verification"
)

// HealthFunc reports whether a backing service is reachable.
type HealthFunc func(ctx context.Context) bool

// Deps are the collaborators the router serves. Locks must be the same locker given
// to the recorder and the verifier.
type Deps struct {
	Subjects   subject.Repository
	Recorder   *recorder.Recorder
	Verifier   *verification.Verifier
	Auth       *auth.Service
	Livestream *livestream.Service
	Hub        *hub.Hub
	Chat       hub.ChatStore
	Pictures   Uploader
	Locks      keylock.Locker
	Clock      clock.Clock
	Log        logger.Logger

	Health  map[string]HealthFunc
	Metrics http.Handler

	DefaultPassword string
	CORSOrigins     []string
	RateLimitPerMin int
}

type api struct {
	subjects        subject.Repository
	recorder        *recorder.Recorder
	verifier        *verification.Verifier
	auth            *auth.Service
	streams         *livestream.Service
	chat            hub.ChatStore
	pictures        Uploader
	locks           keylock.Locker
	clock           clock.Clock
	log             logger.Logger
	health          map[string]HealthFunc
	defaultPassword string
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	setupValidator()
	a := &api{
		subjects:        d.Subjects,
		recorder:        d.Recorder,
		verifier:        d.Verifier,
		auth:            d.Auth,
		streams:         d.Livestream,
		chat:            d.Chat,
		pictures:        d.Pictures,
		locks:           d.Locks,
		clock:           d.Clock,
		log:             d.Log,
		health:          d.Health,
		defaultPassword: d.DefaultPassword,
	}
	if a.clock == nil {
		a.clock = clock.Real{}
	}
	if a.log == nil {
		a.log = logger.Discard()
	}
	if a.locks == nil {
		a.locks = keylock.New()
	}
	if a.pictures == nil {
		a.pictures = disabledUploader{}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware(d.CORSOrigins))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(d.RateLimitPerMin, d.RateLimitPerMin).GinMiddleware())

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}
	r.GET("/healthz", a.healthz)
	if d.Hub != nil {
		r.GET("/ws", gin.WrapH(d.Hub))
	}

	v1 := r.Group("/v1")
	v1.POST("/subjects", a.register)
	v1.POST("/subjects/login", a.subjectLogin)
	v1.GET("/livestream", a.currentStream)
	v1.POST("/admin/login", a.login)
	v1.POST("/auth/refresh", a.refresh)

	tokens := a.auth.Tokens()
	self := v1.Group("/subjects", auth.RequireRole(tokens, auth.RoleSubject))
	self.GET("/me", a.me)
	self.POST("/change-password", a.changePassword)

	staff := v1.Group("", auth.RequireRole(tokens, auth.RoleAdmin, auth.RoleVolunteer))
	staff.GET("/subjects/:id", a.getSubject)
	staff.POST("/attendance", a.record(subject.KindAttendance))
	staff.POST("/meals", a.record(subject.KindMeal))
	staff.POST("/excursions", a.record(subject.KindExcursion))
	staff.GET("/meals-and-excursions", a.mealsAndExcursions)
	staff.GET("/admin/checkin-list", a.checkInList)
	staff.PUT("/admin/checkin/:id", a.checkIn)
	if a.chat != nil {
		staff.GET("/chat/messages", a.chatHistory)
	}

	admin := v1.Group("", auth.RequireRole(tokens, auth.RoleAdmin))
	admin.GET("/subjects", a.listSubjects)
	admin.PATCH("/subjects/:id", a.patchSubject)
	admin.DELETE("/subjects/:id", a.deleteSubject)
	admin.PUT("/subjects/:id/conference-kit", a.conferenceKit)
	admin.POST("/subjects/:id/picture", a.uploadPicture)
	admin.POST("/subjects/:id/reset-password", a.resetPassword)
	admin.PUT("/admin/verify/:id", a.verify)
	admin.POST("/admin/livestream", a.publishStream)
	admin.GET("/admin/volunteers", a.listVolunteers)
	admin.POST("/admin/volunteers", a.createVolunteer)
	admin.PUT("/admin/volunteers/:id", a.updateVolunteer)
	admin.DELETE("/admin/volunteers/:id", a.deleteVolunteer)
	admin.PUT("/attendance/:id", a.override(subject.KindAttendance))
	admin.PUT("/meals/:id/:mealType", a.override(subject.KindMeal))
	admin.PUT("/excursions/:id", a.override(subject.KindExcursion))

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	conf := cors.DefaultConfig()
	conf.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	conf.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	conf.MaxAge = 24 * time.Hour
	if len(origins) == 0 {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOrigins = origins
		conf.AllowCredentials = true
	}
	return cors.New(conf)
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

func (a *api) healthz(c *gin.Context) {
	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, check := range a.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}
