package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nestscore/nest-score-go/internal/service"
	"github.com/nestscore/nest-score-go/pkg/response"
)

// AnalysisHandler handles HTTP requests for location analyses
type AnalysisHandler struct {
	analysisService *service.AnalysisService
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(analysisService *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
	}
}

type analyzeRequest struct {
	Lat             float64        `json:"lat" binding:"required"`
	Lon             float64        `json:"lon" binding:"required"`
	Profile         string         `json:"profile"`
	RadiusOverrides map[string]int `json:"radius_overrides"`
	SkipCache       bool           `json:"skip_cache"`
}

// Analyze handles POST /api/v1/analyses
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.analysisService.Analyze(c.Request.Context(), req.Lat, req.Lon, service.AnalysisOptions{
		ProfileKey:      req.Profile,
		RadiusOverrides: req.RadiusOverrides,
		SkipCache:       req.SkipCache,
	})
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// Rescore handles POST /api/v1/analyses/rescore. Reuses a persisted POI
// snapshot to score a different profile without refetching providers.
func (h *AnalysisHandler) Rescore(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.analysisService.Rescore(c.Request.Context(), req.Lat, req.Lon, service.AnalysisOptions{
		ProfileKey:      req.Profile,
		RadiusOverrides: req.RadiusOverrides,
	})
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// Get handles GET /api/v1/analyses/:id
func (h *AnalysisHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid analysis ID")
		return
	}

	record, result, err := h.analysisService.GetAnalysis(id)
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"id":          record.ID,
		"lat":         record.Lat,
		"lon":         record.Lon,
		"radius_m":    record.RadiusM,
		"profile":     record.ProfileKey,
		"quiet_score": record.QuietScore,
		"base_score":  record.BaseScore,
		"created_at":  record.CreatedAt,
		"expires_at":  record.ExpiresAt,
		"scoring":     result,
	})
}

// AnalyzeQuery handles GET /api/v1/analyses?lat=..&lon=..&profile=..
func (h *AnalysisHandler) AnalyzeQuery(c *gin.Context) {
	latStr := c.Query("lat")
	lonStr := c.Query("lon")
	if latStr == "" || lonStr == "" {
		response.BadRequest(c, "lat and lon query parameters are required")
		return
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		response.BadRequest(c, "Invalid lat parameter")
		return
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		response.BadRequest(c, "Invalid lon parameter")
		return
	}

	result, err := h.analysisService.Analyze(c.Request.Context(), lat, lon, service.AnalysisOptions{
		ProfileKey: c.DefaultQuery("profile", ""),
	})
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, result)
}
