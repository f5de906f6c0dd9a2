package httpapi

import (
	"net/http"

	"github.com/riskibarqy/oddsline/internal/usecase"
)

func (h *Handler) ListScrapers(w http.ResponseWriter, r *http.Request) {
	ctx, span := startHandlerSpan(r, "httpapi.Handler.ListScrapers")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, combinedStatusToDTO(h.registry.Combined()))
}

func (h *Handler) GetScraper(w http.ResponseWriter, r *http.Request) {
	ctx, span := startHandlerSpan(r, "httpapi.Handler.GetScraper")
	defer span.End()

	supervisor, err := h.registry.Get(r.PathValue("name"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, scraperStatusToDTO(supervisor.Status()))
}

func (h *Handler) StartScraper(w http.ResponseWriter, r *http.Request) {
	ctx, span := startHandlerSpan(r, "httpapi.Handler.StartScraper")
	defer span.End()

	name := r.PathValue("name")
	supervisor, err := h.registry.Get(name)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := supervisor.Start(ctx); err != nil {
		h.logFailure(ctx, "start scraper failed", err, "scraper", name)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, scraperStatusToDTO(supervisor.Status()))
}

func (h *Handler) StopScraper(w http.ResponseWriter, r *http.Request) {
	ctx, span := startHandlerSpan(r, "httpapi.Handler.StopScraper")
	defer span.End()

	name := r.PathValue("name")
	supervisor, err := h.registry.Get(name)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := supervisor.Stop(ctx); err != nil {
		h.logFailure(ctx, "stop scraper failed", err, "scraper", name)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, scraperStatusToDTO(supervisor.Status()))
}

func (h *Handler) GetScraperLogs(w http.ResponseWriter, r *http.Request) {
	ctx, span := startHandlerSpan(r, "httpapi.Handler.GetScraperLogs")
	defer span.End()

	supervisor, err := h.registry.Get(r.PathValue("name"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	lines := supervisor.Logs()
	if lines == nil {
		lines = []string{}
	}
	writeSuccess(ctx, w, http.StatusOK, scraperLogsDTO{Name: supervisor.Name(), Lines: lines})
}

func (h *Handler) ClearScraperLogs(w http.ResponseWriter, r *http.Request) {
	ctx, span := startHandlerSpan(r, "httpapi.Handler.ClearScraperLogs")
	defer span.End()

	name := r.PathValue("name")
	supervisor, err := h.registry.Get(name)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := supervisor.ClearLogs(); err != nil {
		h.logFailure(ctx, "clear scraper logs failed", err, "scraper", name)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, scraperLogsDTO{Name: supervisor.Name(), Lines: []string{}})
}

// ControlScrapers applies start or stop to every scraper. Per-scraper
// failures are reported in the body rather than failing the request.
func (h *Handler) ControlScrapers(w http.ResponseWriter, r *http.Request) {
	ctx, span := startHandlerSpan(r, "httpapi.Handler.ControlScrapers")
	defer span.End()

	action, err := usecase.ParseControlAction(r.PathValue("action"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	outcomes := h.registry.Control(ctx, action)
	items := make([]controlOutcomeDTO, 0, len(outcomes))
	for _, o := range outcomes {
		items = append(items, controlOutcomeDTO{Name: o.Name, OK: o.OK, Error: o.Error})
	}
	h.logger.InfoContext(ctx, "scraper control applied", "action", action, "targets", len(items))

	writeSuccess(ctx, w, http.StatusOK, map[string]any{
		"action":   string(action),
		"outcomes": items,
		"status":   combinedStatusToDTO(h.registry.Combined()),
	})
}
