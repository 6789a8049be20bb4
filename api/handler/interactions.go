package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nostrfeed/feedcache/config"
	"github.com/nostrfeed/feedcache/feed"
)

// maxCountsIDs bounds a single counts request. The aggregator caps the
// relay query anyway; this keeps a single URL from carrying an absurd
// id list.
const maxCountsIDs = 500

// InteractionsHandler exposes batched interaction counts to the UI.
type InteractionsHandler struct {
	agg *feed.Aggregator
	cfg config.Config
}

func NewInteractionsHandler(agg *feed.Aggregator, cfg config.Config) *InteractionsHandler {
	return &InteractionsHandler{agg: agg, cfg: cfg}
}

// GetCounts handles GET /interactions/counts?ids=<id>,<id>,...
// Returns a counts object per requested id. The aggregator never fails;
// when the relays are unreachable missing ids simply come back zeroed.
func (h *InteractionsHandler) GetCounts(c *gin.Context) {
	ids := csvParam(c, "ids")
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids parameter is required"})
		return
	}
	if len(ids) > maxCountsIDs {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many ids"})
		return
	}

	counts := h.agg.CountsFor(c.Request.Context(), ids, h.cfg.FetchTimeout)
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

// Invalidate handles POST /interactions/invalidate.
// The UI calls this right after publishing a reaction, reply or zap so the
// next counts lookup reflects the user's own interaction immediately.
func (h *InteractionsHandler) Invalidate(c *gin.Context) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || len(body.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must contain a non-empty ids array"})
		return
	}

	h.agg.Invalidate(body.IDs...)
	c.Status(http.StatusNoContent)
}
