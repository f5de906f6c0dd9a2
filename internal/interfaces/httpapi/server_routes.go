package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, metrics http.Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if metrics == nil {
		return
	}

	mux.Handle("GET /metrics", metrics)
}

func registerScraperRoutes(mux *http.ServeMux, handler *Handler, adminToken string) {
	mux.Handle("GET /v1/admin/scrapers", RequireAdminToken(adminToken, http.HandlerFunc(handler.ListScrapers)))
	mux.Handle("POST /v1/admin/scrapers-control/{action}", RequireAdminToken(adminToken, http.HandlerFunc(handler.ControlScrapers)))
	mux.Handle("GET /v1/admin/scrapers/{name}", RequireAdminToken(adminToken, http.HandlerFunc(handler.GetScraper)))
	mux.Handle("POST /v1/admin/scrapers/{name}/start", RequireAdminToken(adminToken, http.HandlerFunc(handler.StartScraper)))
	mux.Handle("POST /v1/admin/scrapers/{name}/stop", RequireAdminToken(adminToken, http.HandlerFunc(handler.StopScraper)))
	mux.Handle("GET /v1/admin/scrapers/{name}/logs", RequireAdminToken(adminToken, http.HandlerFunc(handler.GetScraperLogs)))
	mux.Handle("DELETE /v1/admin/scrapers/{name}/logs", RequireAdminToken(adminToken, http.HandlerFunc(handler.ClearScraperLogs)))
}

func registerMatchRoutes(mux *http.ServeMux, handler *Handler, adminToken string) {
	mux.Handle("GET /v1/admin/stats", RequireAdminToken(adminToken, http.HandlerFunc(handler.GetStats)))
	mux.Handle("GET /v1/admin/matches/recent", RequireAdminToken(adminToken, http.HandlerFunc(handler.ListRecentMatches)))
	mux.Handle("POST /v1/admin/matches/{matchID}/finish", RequireAdminToken(adminToken, http.HandlerFunc(handler.FinishMatch)))
	mux.Handle("POST /v1/admin/matches/{matchID}/resolve", RequireAdminToken(adminToken, http.HandlerFunc(handler.ResolveMatchScore)))
	mux.Handle("POST /v1/admin/matches/{matchID}/settle", RequireAdminToken(adminToken, http.HandlerFunc(handler.SettleMatch)))
	mux.Handle("GET /v1/admin/accounts/{userID}", RequireAdminToken(adminToken, http.HandlerFunc(handler.GetAccount)))
}

func registerTaskRoutes(mux *http.ServeMux, handler *Handler, adminToken string) {
	mux.Handle("GET /v1/admin/tasks", RequireAdminToken(adminToken, http.HandlerFunc(handler.ListTasks)))
	mux.Handle("POST /v1/admin/tasks", RequireAdminToken(adminToken, http.HandlerFunc(handler.EnqueueTask)))
	mux.Handle("DELETE /v1/admin/tasks/{taskID}", RequireAdminToken(adminToken, http.HandlerFunc(handler.CancelTask)))
}
