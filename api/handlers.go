package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealscope/engine"
	"dealscope/logging"
	"dealscope/models"
	"dealscope/services"
)

// Handler adapts the services to HTTP
type Handler struct {
	properties  *services.PropertyService
	profiles    *services.ProfileService
	evaluations *services.EvaluationService
	offers      *services.OfferService
	logger      *zap.Logger
}

func NewHandler(properties *services.PropertyService, profiles *services.ProfileService,
	evaluations *services.EvaluationService, offers *services.OfferService, logger *zap.Logger) *Handler {
	return &Handler{
		properties:  properties,
		profiles:    profiles,
		evaluations: evaluations,
		offers:      offers,
		logger:      logging.Named(logger, "api"),
	}
}

func actor(c *gin.Context) string {
	return c.GetHeader(ActorHeader)
}

// pathID parses the :id segment. Malformed ids read as not found.
func (h *Handler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.writeError(c, services.ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "The request body is not valid JSON for this endpoint.")
		return false
	}
	return true
}

// =============================================================================
// Properties
// =============================================================================

func (h *Handler) ListProperties(c *gin.Context) {
	props, err := h.properties.List(c.Request.Context(), actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if props == nil {
		props = []models.Property{}
	}
	c.JSON(http.StatusOK, props)
}

func (h *Handler) CreateProperty(c *gin.Context) {
	var p models.Property
	if !bind(c, &p) {
		return
	}
	created, err := h.properties.Create(c.Request.Context(), actor(c), &p)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetProperty(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	p, err := h.properties.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateProperty(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var p models.Property
	if !bind(c, &p) {
		return
	}
	p.ID = id
	updated, err := h.properties.Update(c.Request.Context(), actor(c), &p)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteProperty(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.properties.Delete(c.Request.Context(), actor(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ImportRentRoll takes a CSV body
func (h *Handler) ImportRentRoll(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	p, err := h.properties.ImportRentRoll(c.Request.Context(), actor(c), id, c.Request.Body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// =============================================================================
// Evaluation and labs
// =============================================================================

func (h *Handler) Evaluate(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	ev, err := h.evaluations.Evaluate(c.Request.Context(), actor(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *Handler) Export(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	url, err := h.evaluations.Export(c.Request.Context(), actor(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

func (h *Handler) MortgageLab(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var o engine.MortgageOverlay
	if !bind(c, &o) {
		return
	}
	result, err := h.evaluations.MortgageLab(c.Request.Context(), actor(c), id, o)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ApplyMortgageScenario(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var o engine.MortgageOverlay
	if !bind(c, &o) {
		return
	}
	p, err := h.evaluations.ApplyMortgageScenario(c.Request.Context(), actor(c), id, o)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) CashToCloseLab(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var o engine.CashToCloseOverlay
	if !bind(c, &o) {
		return
	}
	result, err := h.evaluations.CashToCloseLab(c.Request.Context(), actor(c), id, o)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ApplyCashToCloseScenario(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var o engine.CashToCloseOverlay
	if !bind(c, &o) {
		return
	}
	p, err := h.evaluations.ApplyCashToCloseScenario(c.Request.Context(), actor(c), id, o)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// =============================================================================
// Profiles
// =============================================================================

func (h *Handler) ListProfiles(c *gin.Context) {
	profiles, err := h.profiles.List(c.Request.Context(), actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if profiles == nil {
		profiles = []models.GradeProfile{}
	}
	c.JSON(http.StatusOK, profiles)
}

func (h *Handler) CreateProfile(c *gin.Context) {
	var g models.GradeProfile
	if !bind(c, &g) {
		return
	}
	created, err := h.profiles.Create(c.Request.Context(), actor(c), &g)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetProfile(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	g, err := h.profiles.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var g models.GradeProfile
	if !bind(c, &g) {
		return
	}
	g.ID = id
	updated, err := h.profiles.Update(c.Request.Context(), actor(c), &g)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteProfile(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.profiles.Delete(c.Request.Context(), actor(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SetDefaultProfile(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.profiles.SetDefault(c.Request.Context(), actor(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// =============================================================================
// Offers
// =============================================================================

func (h *Handler) ListOffers(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	offers, err := h.offers.FetchOffers(c.Request.Context(), actor(c), id, c.Query("archived") == "true")
	if err != nil {
		h.writeError(c, err)
		return
	}
	if offers == nil {
		offers = []models.PropertyOffer{}
	}
	c.JSON(http.StatusOK, offers)
}

func (h *Handler) CreateOffer(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var in services.NewOffer
	if !bind(c, &in) {
		return
	}
	in.PropertyID = id
	detail, err := h.offers.CreateOffer(c.Request.Context(), actor(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

// OfferEvents streams offer changes for one property as server-sent events
func (h *Handler) OfferEvents(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.properties.Get(ctx, actor(c), id); err != nil {
		h.writeError(c, err)
		return
	}

	changes := make(chan models.OfferChange, 16)
	stop, err := h.offers.Subscribe(ctx, func(change models.OfferChange) {
		if change.PropertyID != id {
			return
		}
		select {
		case changes <- change:
		case <-ctx.Done():
		}
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case change := <-changes:
			c.SSEvent("offer", change)
			return true
		}
	})
}

func (h *Handler) GetOffer(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	detail, err := h.offers.FetchDetail(c.Request.Context(), actor(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) CreateRevision(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var terms models.RevisionTerms
	if !bind(c, &terms) {
		return
	}
	rev, err := h.offers.CreateRevision(c.Request.Context(), actor(c), id, terms)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rev)
}

type statusRequest struct {
	Status models.OfferStatus `json:"status"`
}

func (h *Handler) UpdateOfferStatus(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req statusRequest
	if !bind(c, &req) {
		return
	}
	offer, err := h.offers.UpdateStatus(c.Request.Context(), actor(c), id, req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

type decisionRequest struct {
	ClientDecision models.OfferClientDecision `json:"client_decision"`
}

func (h *Handler) UpdateClientDecision(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req decisionRequest
	if !bind(c, &req) {
		return
	}
	offer, err := h.offers.UpdateClientDecision(c.Request.Context(), actor(c), id, req.ClientDecision)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

func (h *Handler) ArchiveOffer(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	offer, err := h.offers.ArchiveOffer(c.Request.Context(), actor(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

type commentRequest struct {
	Body string `json:"body"`
}

func (h *Handler) AddComment(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req commentRequest
	if !bind(c, &req) {
		return
	}
	comment, err := h.offers.AddComment(c.Request.Context(), actor(c), id, req.Body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) DeleteComment(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.offers.DeleteComment(c.Request.Context(), actor(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
