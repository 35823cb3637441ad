package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/nestscore/nest-score-go/internal/scoring"
	"github.com/nestscore/nest-score-go/pkg/response"
)

// ProfileHandler exposes the scoring profile registry
type ProfileHandler struct{}

// NewProfileHandler creates a new profile handler
func NewProfileHandler() *ProfileHandler {
	return &ProfileHandler{}
}

type profileSummary struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
}

// List handles GET /api/v1/profiles
func (h *ProfileHandler) List(c *gin.Context) {
	profiles := scoring.AllProfiles()
	out := make([]profileSummary, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, profileSummary{
			Key:         p.Key,
			Name:        p.Name,
			Description: p.Description,
			Emoji:       p.Emoji,
		})
	}
	response.Success(c, out)
}

// Get handles GET /api/v1/profiles/:key with the full configuration
func (h *ProfileHandler) Get(c *gin.Context) {
	key := c.Param("key")
	if !scoring.KnownProfile(key) {
		response.NotFound(c, "unknown profile: "+key)
		return
	}
	response.Success(c, scoring.GetProfile(key))
}
