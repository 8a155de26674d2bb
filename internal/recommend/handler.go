package recommend

import (
	"net/http"

	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
	httperr "github.com/aevon-lab/tradepulse/internal/core/errors"
	"github.com/gin-gonic/gin"
)

type recommendQuery struct {
	TopN      int    `form:"top_n"`
	Horizon   int    `form:"horizon"`
	ProductID string `form:"product_id"`
}

// RegisterRoutes registers the recommendation routes on the given router group.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	rec := r.Group("/recommendations")
	rec.GET("/best-order-time", s.HandleBestOrderTime)
	rec.GET("/demand-forecast", s.HandleDemandForecast)
	rec.GET("/restock", s.HandleRestock)
	rec.GET("/customer-segments", s.HandleCustomerSegments)
	rec.GET("/pricing", s.HandlePricing)
	rec.GET("/retention", s.HandleRetention)
	rec.GET("/operations", s.HandleOperations)
	rec.GET("/overview", s.HandleOverview)
}

func bind(c *gin.Context) (recommendQuery, bool) {
	var q recommendQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httperr.BadQuery(c, err)
		return q, false
	}
	return q, true
}

// HandleBestOrderTime handles GET /recommendations/best-order-time
// Query parameters: top_n (1..24, default 3)
func (s *Service) HandleBestOrderTime(c *gin.Context) {
	q, ok := bind(c)
	if !ok {
		return
	}
	if q.TopN < 0 || q.TopN > 24 {
		httperr.Respond(c, aggregation.InvalidSpecf("top_n must be between 1 and 24"), "Invalid top_n")
		return
	}
	resp, err := s.BestOrderTime(c.Request.Context(), q.TopN)
	if err != nil {
		httperr.Respond(c, err, "Failed to compute best order time")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleDemandForecast handles GET /recommendations/demand-forecast
// Query parameters: horizon (days, 1..90, default 7)
func (s *Service) HandleDemandForecast(c *gin.Context) {
	q, ok := bind(c)
	if !ok {
		return
	}
	resp, err := s.DemandForecast(c.Request.Context(), q.Horizon)
	if err != nil {
		httperr.Respond(c, err, "Failed to forecast demand")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleRestock handles GET /recommendations/restock
// Query parameters: product_id (optional)
func (s *Service) HandleRestock(c *gin.Context) {
	q, ok := bind(c)
	if !ok {
		return
	}
	resp, err := s.Restock(c.Request.Context(), q.ProductID)
	if err != nil {
		httperr.Respond(c, err, "Failed to compute restock recommendations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": resp})
}

func (s *Service) HandleCustomerSegments(c *gin.Context) {
	resp, err := s.CustomerSegments(c.Request.Context())
	if err != nil {
		httperr.Respond(c, err, "Failed to segment customers")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Service) HandlePricing(c *gin.Context) {
	resp, err := s.Pricing(c.Request.Context())
	if err != nil {
		httperr.Respond(c, err, "Failed to compute pricing insights")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": resp})
}

func (s *Service) HandleRetention(c *gin.Context) {
	resp, err := s.Retention(c.Request.Context())
	if err != nil {
		httperr.Respond(c, err, "Failed to compute retention recommendations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": resp})
}

func (s *Service) HandleOperations(c *gin.Context) {
	resp, err := s.Operations(c.Request.Context())
	if err != nil {
		httperr.Respond(c, err, "Failed to compute operational recommendations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": resp})
}

func (s *Service) HandleOverview(c *gin.Context) {
	resp, err := s.Overview(c.Request.Context())
	if err != nil {
		httperr.Respond(c, err, "Failed to compute recommendations")
		return
	}
	c.JSON(http.StatusOK, resp)
}
