package analytics

import (
	"net/http"
	"strings"

	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
	httperr "github.com/aevon-lab/tradepulse/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// geographicLimit is the default number of regions.
const geographicLimit = 50

type reportQuery struct {
	WindowParams
	Limit   int    `form:"limit"`
	GroupBy string `form:"group_by"`
}

// RegisterRoutes registers the analytics routes on the given router group.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	finance := r.Group("/finance")
	finance.GET("/overview", s.HandleFinanceOverview)
	finance.GET("/trends", s.HandleFinanceTrends)
	finance.GET("/hourly-patterns", s.HandleHourlyPatterns)

	orders := r.Group("/orders")
	orders.GET("/peak-hours", s.HandlePeakHours)
	orders.GET("/day-of-week", s.HandleDayOfWeek)
	orders.GET("/velocity", s.HandleVelocity)
	orders.GET("/funnel", s.HandleFunnel)

	products := r.Group("/products")
	products.GET("/best-sellers", s.HandleBestSellers)
	products.GET("/category-performance", s.HandleCategoryPerformance)
	products.GET("/trending", s.HandleTrending)

	r.GET("/customers/geographic", s.HandleGeographic)
	r.GET("/services/booking-trends", s.HandleBookingTrends)
	r.GET("/metrics/:name", s.HandleMetric)
}

// bind parses the common query parameters. It writes the error response
// and reports false when they are invalid.
func (s *Service) bind(c *gin.Context) (reportQuery, bool) {
	var q reportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httperr.BadQuery(c, err)
		return q, false
	}
	return q, true
}

func (s *Service) HandleFinanceOverview(c *gin.Context) {
	q, ok := s.bind(c)
	if !ok {
		return
	}
	w, err := s.ResolveWindow(q.WindowParams)
	if err != nil {
		httperr.Respond(c, err, "Invalid window")
		return
	}
	resp, err := s.FinanceOverview(c.Request.Context(), w)
	if err != nil {
		httperr.Respond(c, err, "Failed to compute finance overview")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Service) HandleFinanceTrends(c *gin.Context) {
	q, ok := s.bind(c)
	if !ok {
		return
	}
	w, err := s.ResolveWindow(q.WindowParams)
	if err != nil {
		httperr.Respond(c, err, "Invalid window")
		return
	}
	resp, err := s.FinanceTrends(c.Request.Context(), w)
	if err != nil {
		httperr.Respond(c, err, "Failed to compute payment trends")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Service) HandleHourlyPatterns(c *gin.Context) {
	q, ok := s.bind(c)
	if !ok {
		return
	}
	w, err := s.ResolveWindow(q.WindowParams)
	if err != nil {
		httperr.Respond(c, err, "Invalid window")
		return
	}
	resp, err := s.HourlyPatterns(c.Request.Context(), w)
	if err != nil {
		httperr.Respond(c, err, "Failed to compute hourly payment patterns")
		return
	}
	c.JSON(http.StatusOK, gin.H{"hours": resp})
}

func (s *Service) HandlePeakHours(c *gin.Context) {
	q, ok := s.bind(c)
	if !ok {
		return
	}
	w, err := s.ResolveWindow(q.WindowParams)
	if err != nil {
		httperr.Respond(c, err, "Invalid window")
		return
	}
	resp, err := s.PeakHours(c.Request.Context(), w)
	if err != nil {
		httperr.Respond(c, err, "Failed to compute peak hours")
		return
	}
	c.JSON(http.StatusOK, gin.H{"window": w, "hours": resp})
}

func (s *Service) HandleDayOfWeek(c *gin.Context) {
	q, ok := s.bind(c)
	if !ok {
		return
	}
	w, err := s.ResolveWindow(q.WindowParams)
	if err != nil {
		httperr.Respond(c, err, "Invalid window")
		return
	}
	resp, err := s.DayOfWeek(c.Request.Context(), w)
	if err != nil {
		httperr.Respond(c, err, "Failed to compute day of week analysis")
		return
	}
	c.JSON(http.StatusOK, gin.H{"window": w, "days": resp})
}

func (s *Service) HandleVelocity(c *gin.Context) {
	resp, err := s.Velocity(c.Request.Context())
	if err != nil {
		httperr.Respond(c, err, "Failed to compute order velocity")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Service) HandleFunnel(c *gin.Context) {
	q, ok := s.bind(c)
	if !ok {
		return
	}
	w, err := s.ResolveWindow(q.WindowParams)
	if err != nil {
		httperr.Respond(c, err, "Invalid window")
		return
	}
	resp, err := s.Funnel(c.Request.Context(), w)
	if err != nil {
		httperr.Respond(c, err, "Failed to compute order funnel")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Service) HandleBestSellers(c *gin.Context) {
	q, ok := s.bind(c)
	if !ok {
		return
	}
	w, limit, err := s.resolve(q)
	if err != nil {
		httperr.Respond(c, err, "Invalid query")
		return
	}
	resp, err := s.BestSellers(c.Request.Context(), w, limit)
	if err != nil {
		httperr.Respond(c, err, "Failed to compute best sellers")
		return
	}
	c.JSON(http.StatusOK, gin.H{"window": w, "products": resp})
}

func (s *Service) HandleCategoryPerformance(c *gin.Context) {
	q, ok := s.bind(c)
	if !ok {
		return
	}
	w, err := s.ResolveWindow(q.WindowParams)
	if err != nil {
		httperr.Respond(c, err, "Invalid window")
		return
	}
	resp, err := s.CategoryPerformance(c.Request.Context(), w)
	if err != nil {
		httperr.Respond(c, err, "Failed to compute category performance")
		return
	}
	c.JSON(http.StatusOK, gin.H{"window": w, "categories": resp})
}

func (s *Service) HandleTrending(c *gin.Context) {
	q, ok := s.bind(c)
	if !ok {
		return
	}
	w, limit, err := s.resolve(q)
	if err != nil {
		httperr.Respond(c, err, "Invalid query")
		return
	}
	resp, err := s.Trending(c.Request.Context(), w, limit)
	if err != nil {
		httperr.Respond(c, err, "Failed to compute trending products")
		return
	}
	c.JSON(http.StatusOK, gin.H{"window": w, "products": resp})
}

func (s *Service) HandleGeographic(c *gin.Context) {
	q, ok := s.bind(c)
	if !ok {
		return
	}
	if q.Limit == 0 {
		q.Limit = geographicLimit
	}
	w, limit, err := s.resolve(q)
	if err != nil {
		httperr.Respond(c, err, "Invalid query")
		return
	}
	resp, err := s.Geographic(c.Request.Context(), w, limit)
	if err != nil {
		httperr.Respond(c, err, "Failed to compute geographic analysis")
		return
	}
	c.JSON(http.StatusOK, gin.H{"window": w, "regions": resp})
}

func (s *Service) HandleBookingTrends(c *gin.Context) {
	q, ok := s.bind(c)
	if !ok {
		return
	}
	w, err := s.ResolveWindow(q.WindowParams)
	if err != nil {
		httperr.Respond(c, err, "Invalid window")
		return
	}
	resp, err := s.BookingTrends(c.Request.Context(), w)
	if err != nil {
		httperr.Respond(c, err, "Failed to compute booking trends")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleMetric handles GET /metrics/:name
// Query parameters: start, end, days, granularity, group_by (comma separated), limit
func (s *Service) HandleMetric(c *gin.Context) {
	q, ok := s.bind(c)
	if !ok {
		return
	}
	w, err := s.ResolveWindow(q.WindowParams)
	if err != nil {
		httperr.Respond(c, err, "Invalid window")
		return
	}
	limit := q.Limit
	if limit != 0 {
		if limit, err = s.ResolveLimit(limit); err != nil {
			httperr.Respond(c, err, "Invalid limit")
			return
		}
	}

	var groupBy []string
	if q.GroupBy != "" {
		groupBy = []string{}
		for _, field := range strings.Split(q.GroupBy, ",") {
			if field = strings.TrimSpace(field); field != "" {
				groupBy = append(groupBy, field)
			}
		}
	}

	resp, err := s.Metric(c.Request.Context(), c.Param("name"), w, groupBy, limit)
	if err != nil {
		httperr.Respond(c, err, "Failed to compute metric")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Service) resolve(q reportQuery) (w aggregation.Window, limit int, err error) {
	if w, err = s.ResolveWindow(q.WindowParams); err != nil {
		return w, 0, err
	}
	limit, err = s.ResolveLimit(q.Limit)
	return w, limit, err
}
