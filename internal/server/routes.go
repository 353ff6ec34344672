package server

import "net/http"

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Public catalog
	mux.HandleFunc("GET /api/jobs", s.app.JobHandler.ListJobsHandler)
	mux.HandleFunc("GET /api/jobs/{id}", s.app.JobHandler.GetJobHandler)
	mux.HandleFunc("POST /api/jobs/{id}/click", s.app.JobHandler.ClickHandler)

	// Candidates
	mux.HandleFunc("GET /api/candidates/{id}", s.app.CandidateHandler.GetCandidateHandler)
	mux.HandleFunc("PATCH /api/candidates/{id}", s.app.CandidateHandler.PatchCandidateHandler)
	mux.HandleFunc("POST /api/candidates/sync-from-waitlist", s.app.CandidateHandler.SyncFromWaitlistHandler)
	mux.HandleFunc("GET /api/candidates/{id}/matches", s.app.CandidateHandler.GetMatchesHandler)

	// Admin - pipeline
	mux.HandleFunc("GET /api/admin/pipeline/status", s.app.PipelineHandler.StatusHandler)
	mux.HandleFunc("POST /api/admin/pipeline/run", s.app.PipelineHandler.RunHandler)
	mux.HandleFunc("POST /api/admin/pipeline/crawl", s.app.PipelineHandler.CrawlHandler)
	mux.HandleFunc("POST /api/admin/pipeline/enrich", s.app.PipelineHandler.EnrichHandler)
	mux.HandleFunc("POST /api/admin/pipeline/embeddings", s.app.PipelineHandler.EmbeddingsHandler)
	mux.HandleFunc("POST /api/admin/pipeline/maintenance", s.app.PipelineHandler.MaintenanceHandler)
	mux.HandleFunc("POST /api/admin/pipeline/cancel", s.app.PipelineHandler.CancelHandler)
	mux.HandleFunc("GET /api/admin/analytics", s.app.PipelineHandler.AnalyticsHandler)

	// Admin - discovery
	mux.HandleFunc("POST /api/admin/discovery/run", s.app.DiscoveryHandler.RunHandler)
	mux.HandleFunc("POST /api/admin/discovery/process-queue", s.app.DiscoveryHandler.ProcessQueueHandler)
	mux.HandleFunc("GET /api/admin/discovery/sources", s.app.DiscoveryHandler.SourcesHandler)

	// Admin - scheduler
	mux.HandleFunc("POST /api/admin/scheduler/start", s.app.SchedulerHandler.StartHandler)
	mux.HandleFunc("POST /api/admin/scheduler/stop", s.app.SchedulerHandler.StopHandler)
	mux.HandleFunc("GET /api/admin/scheduler/status", s.app.SchedulerHandler.StatusHandler)

	// Admin - live log/progress stream
	mux.HandleFunc("GET /api/admin/ws/logs", s.app.WSHandler.LogsHandler)

	// System
	mux.HandleFunc("GET /api/health", s.healthHandler)
	mux.HandleFunc("POST /api/shutdown", s.ShutdownHandler) // dev mode only

	// 404 for unmatched API routes
	mux.HandleFunc("/api/", s.notFoundHandler)

	return mux
}

// healthHandler reports process liveness
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// notFoundHandler returns the standard error payload for unknown API paths
func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"detail":"not found"}`))
}
