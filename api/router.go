package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ActorHeader carries the authenticated user id, set by the fronting gateway
const ActorHeader = "X-User-ID"

// NewRouter wires the Gin engine with routes and middlewares.
func NewRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")

	v1.GET("/properties", h.ListProperties)
	v1.POST("/properties", h.CreateProperty)
	v1.GET("/properties/:id", h.GetProperty)
	v1.PUT("/properties/:id", h.UpdateProperty)
	v1.DELETE("/properties/:id", h.DeleteProperty)
	v1.PUT("/properties/:id/rent-roll", h.ImportRentRoll)
	v1.GET("/properties/:id/evaluation", h.Evaluate)
	v1.POST("/properties/:id/export", h.Export)
	v1.POST("/properties/:id/labs/mortgage", h.MortgageLab)
	v1.POST("/properties/:id/labs/mortgage/apply", h.ApplyMortgageScenario)
	v1.POST("/properties/:id/labs/cash-to-close", h.CashToCloseLab)
	v1.POST("/properties/:id/labs/cash-to-close/apply", h.ApplyCashToCloseScenario)
	v1.GET("/properties/:id/offers", h.ListOffers)
	v1.POST("/properties/:id/offers", h.CreateOffer)
	v1.GET("/properties/:id/offers/events", h.OfferEvents)

	v1.GET("/profiles", h.ListProfiles)
	v1.POST("/profiles", h.CreateProfile)
	v1.GET("/profiles/:id", h.GetProfile)
	v1.PUT("/profiles/:id", h.UpdateProfile)
	v1.DELETE("/profiles/:id", h.DeleteProfile)
	v1.POST("/profiles/:id/default", h.SetDefaultProfile)

	v1.GET("/offers/:id", h.GetOffer)
	v1.POST("/offers/:id/revisions", h.CreateRevision)
	v1.PUT("/offers/:id/status", h.UpdateOfferStatus)
	v1.PUT("/offers/:id/decision", h.UpdateClientDecision)
	v1.POST("/offers/:id/archive", h.ArchiveOffer)
	v1.POST("/offers/:id/comments", h.AddComment)
	v1.DELETE("/comments/:id", h.DeleteComment)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("actor", c.GetHeader(ActorHeader)))
	}
}
