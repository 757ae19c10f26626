// Package api exposes the control-plane HTTP surface: read/write the
// process-wide persona and report health, following the teacher's
// gin.Engine + gin.H route-handler idiom.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xpanvictor/vadbridge/internal/metrics"
	"github.com/xpanvictor/vadbridge/internal/persona"
)

// Router builds the gin engine for the control surface, plus the
// Prometheus scrape endpoint for m's registry.
func Router(state *persona.State, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/metrics", gin.WrapH(m.Handler()))

	r.GET("/persona", func(c *gin.Context) {
		current := state.Get()
		c.JSON(http.StatusOK, gin.H{"persona": current.String(), "index": current.Index()})
	})

	r.GET("/persona/list", func(c *gin.Context) {
		available := make([]gin.H, 0, len(persona.All))
		for _, t := range persona.All {
			available = append(available, gin.H{"index": t.Index(), "name": t.String()})
		}
		c.JSON(http.StatusOK, gin.H{"current": state.Get().String(), "available": available})
	})

	r.PUT("/persona", func(c *gin.Context) {
		var body struct {
			Persona *string `json:"persona"`
			Index   *int    `json:"index"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		var (
			next persona.Trait
			ok   bool
		)
		switch {
		case body.Persona != nil:
			next, ok = persona.FromName(*body.Persona)
		case body.Index != nil && *body.Index >= 0 && *body.Index <= 255:
			next, ok = persona.FromIndex(uint8(*body.Index))
		default:
			ok = false
		}
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "persona or index must name a valid persona"})
			return
		}

		state.Set(next)
		c.JSON(http.StatusOK, gin.H{"persona": next.String(), "index": next.Index()})
	})

	return r
}
