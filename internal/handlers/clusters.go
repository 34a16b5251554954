package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/elasticdoctor/webapp/internal/auth"
	"github.com/elasticdoctor/webapp/internal/services"
	"github.com/elasticdoctor/webapp/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ClusterHandler provides HTTP handlers for clusters.
type ClusterHandler struct {
	clusterService *services.ClusterService
	logger         *zap.Logger
}

func NewClusterHandler(clusterService *services.ClusterService, logger *zap.Logger) *ClusterHandler {
	return &ClusterHandler{clusterService: clusterService, logger: logger}
}

// ClusterRouter registers cluster routes. Every route requires a session.
func ClusterRouter(r chi.Router, handler *ClusterHandler, sessions *auth.SessionManager) {
	r.Use(RequireSession(sessions))

	r.Get("/", handler.ListClusters)
	r.Post("/", handler.CreateCluster)
	r.Route("/{clusterID}", func(r chi.Router) {
		r.Get("/", handler.GetCluster)
		r.Delete("/", handler.DeleteCluster)
		r.Put("/ca-cert", handler.UploadCACert)
	})
}

func (h *ClusterHandler) ListClusters(w http.ResponseWriter, r *http.Request) {
	session, err := sessionFromRequest(r)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch clusters")
		return
	}

	clusters, err := h.clusterService.List(r.Context(), session.UserID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch clusters")
		return
	}
	writeJSON(w, http.StatusOK, ClusterListResponse{Success: true, Clusters: clusters})
}

func (h *ClusterHandler) CreateCluster(w http.ResponseWriter, r *http.Request) {
	session, err := sessionFromRequest(r)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create cluster")
		return
	}

	var req CreateClusterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err, "Failed to create cluster")
		return
	}

	cluster, err := h.clusterService.Create(r.Context(), session.UserID, services.CreateClusterInput{
		Name:        req.Name,
		Host:        req.Host,
		Port:        req.Port,
		Scheme:      req.Scheme,
		Username:    req.Username,
		Password:    req.Password,
		APIKey:      req.APIKey,
		VerifyCerts: req.VerifyCerts,
		CACertPath:  req.CACertPath,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create cluster")
		return
	}
	writeJSON(w, http.StatusCreated, ClusterResponse{Success: true, Cluster: cluster})
}

func (h *ClusterHandler) GetCluster(w http.ResponseWriter, r *http.Request) {
	session, err := sessionFromRequest(r)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch cluster")
		return
	}
	id, err := parseClusterID(r)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch cluster")
		return
	}

	cluster, err := h.clusterService.Get(r.Context(), session.UserID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch cluster")
		return
	}
	writeJSON(w, http.StatusOK, ClusterResponse{Success: true, Cluster: cluster})
}

func (h *ClusterHandler) DeleteCluster(w http.ResponseWriter, r *http.Request) {
	session, err := sessionFromRequest(r)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to delete cluster")
		return
	}
	id, err := parseClusterID(r)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to delete cluster")
		return
	}

	if err := h.clusterService.Delete(r.Context(), session.UserID, id); err != nil {
		writeServiceError(w, h.logger, err, "Failed to delete cluster")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadCACert accepts a raw PEM body.
func (h *ClusterHandler) UploadCACert(w http.ResponseWriter, r *http.Request) {
	session, err := sessionFromRequest(r)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to store CA certificate")
		return
	}
	id, err := parseClusterID(r)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to store CA certificate")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, services.MaxCACertSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "CA certificate is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	cluster, err := h.clusterService.UploadCACert(r.Context(), session.UserID, id, data)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to store CA certificate")
		return
	}
	writeJSON(w, http.StatusOK, ClusterResponse{Success: true, Cluster: cluster})
}

// CreateClusterRequest uses pointers so absent fields take defaults.
type CreateClusterRequest struct {
	Name        string  `json:"name" validate:"required"`
	Host        string  `json:"host" validate:"required"`
	Port        *int    `json:"port"`
	Scheme      string  `json:"scheme"`
	Username    *string `json:"username"`
	Password    *string `json:"password"`
	APIKey      *string `json:"api_key"`
	VerifyCerts *bool   `json:"verify_certs"`
	CACertPath  *string `json:"ca_cert_path"`
}

type ClusterListResponse struct {
	Success  bool            `json:"success"`
	Clusters []types.Cluster `json:"clusters"`
}

type ClusterResponse struct {
	Success bool          `json:"success"`
	Cluster types.Cluster `json:"cluster"`
}
