package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adb-analytics/apiserver/internal/services"
	"github.com/adb-analytics/apiserver/internal/validation"
)

// ProjectHandler provides HTTP handlers for projects.
type ProjectHandler struct {
	projectService *services.ProjectService
	reportService  *services.ReportService
}

func NewProjectHandler(projectService *services.ProjectService, reportService *services.ReportService) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		reportService:  reportService,
	}
}

// ProjectRouter registers project routes. Every route requires authMiddleware.
func ProjectRouter(
	r chi.Router,
	projectService *services.ProjectService,
	reportService *services.ReportService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewProjectHandler(projectService, reportService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListProjects)
	r.Post("/", handler.CreateProject)
	r.Get("/summary", handler.Summary)
	r.Post("/reports", handler.ArchiveReport)
	r.Get("/reports", handler.ListReports)
	r.Get("/reports/{reportID}", handler.GetReport)
}

func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	projects, err := h.projectService.ListByOwner(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req validation.ProjectInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	project, err := h.projectService.Create(r.Context(), ownerID, req)
	if err != nil {
		if writeValidation(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create project")
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summary, err := h.projectService.Summary(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to summarize projects")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *ProjectHandler) ArchiveReport(w http.ResponseWriter, r *http.Request) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	key, err := h.reportService.Archive(r.Context(), ownerID)
	if err != nil {
		if errors.Is(err, services.ErrStorageDisabled) {
			writeError(w, http.StatusServiceUnavailable, "report storage is not configured")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to archive report")
		return
	}
	writeJSON(w, http.StatusCreated, ReportResponse{Key: key})
}

func (h *ProjectHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reports, err := h.reportService.List(r.Context(), ownerID)
	if err != nil {
		if errors.Is(err, services.ErrStorageDisabled) {
			writeError(w, http.StatusServiceUnavailable, "report storage is not configured")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *ProjectHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rc, err := h.reportService.Open(r.Context(), ownerID, chi.URLParam(r, "reportID"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrStorageDisabled):
			writeError(w, http.StatusServiceUnavailable, "report storage is not configured")
		case errors.Is(err, services.ErrReportNotFound):
			writeError(w, http.StatusNotFound, "report not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to load report")
		}
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("handlers: stream report: %v", err)
	}
}

type ReportResponse struct {
	Key string `json:"key"`
}
