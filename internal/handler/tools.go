package handler

import (
	"net/http"
	"strconv"

	"github.com/toolscout/toolscout/internal/index"
	"github.com/toolscout/toolscout/internal/models"
	"github.com/toolscout/toolscout/internal/router"
)

// ToolsHandler exposes the routed tool catalog and the similarity search
// behind the agent loop, mainly for operators debugging tool selection
type ToolsHandler struct {
	router     *router.Router
	index      *index.Index
	maxResults int
	minScore   float64
}

func NewToolsHandler(r *router.Router, idx *index.Index, maxResults int, minScore float64) *ToolsHandler {
	return &ToolsHandler{router: r, index: idx, maxResults: maxResults, minScore: minScore}
}

// ListTools handles GET /api/v1/tools
func (h *ToolsHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	routed := h.router.ListAll()
	infos := make([]models.ToolInfo, len(routed))
	for i, rt := range routed {
		infos[i] = models.ToolInfo{
			Name:        rt.Name,
			Description: rt.Description,
			Backend:     rt.Backend,
		}
	}
	models.WriteJSON(w, http.StatusOK, models.ToolsResponse{Tools: infos})
}

// SearchTools handles GET /api/v1/tools/search?q=...
func (h *ToolsHandler) SearchTools(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		models.WriteError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	maxResults := h.maxResults
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > h.maxResults {
			models.WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		maxResults = n
	}

	descs, err := h.index.Search(r.Context(), query, maxResults, h.minScore)
	if err != nil {
		models.WriteError(w, http.StatusBadGateway, "tool search failed: "+err.Error())
		return
	}

	infos := make([]models.ToolInfo, len(descs))
	for i, d := range descs {
		infos[i] = models.ToolInfo{Name: d.Name, Description: d.Description}
	}
	models.WriteJSON(w, http.StatusOK, models.ToolsResponse{Tools: infos})
}
