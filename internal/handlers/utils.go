package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/elasticdoctor/webapp/internal/auth"
	"github.com/elasticdoctor/webapp/internal/services"
	"github.com/elasticdoctor/webapp/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const maxJSONBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports field errors by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ErrorResponse is the error payload of every endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeErrorMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// Unexpected errors are logged and reported with a generic message.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	var validationErr *services.ValidationError
	var quotaErr *services.QuotaExceededError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, services.ErrUserGone):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.As(err, &quotaErr):
		writeErrorMessage(w, http.StatusForbidden, "CLUSTER_LIMIT_REACHED", quotaErr.Error())
	case errors.Is(err, services.ErrClusterNotFound):
		writeError(w, http.StatusNotFound, "Cluster not found")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrUserAlreadyExists):
		writeErrorMessage(w, http.StatusConflict, "USER_ALREADY_EXISTS", "An account with this email already exists")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, services.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Certificate storage is not configured")
	default:
		logger.Error(fallback, zap.Error(err))
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// decodeJSON reads a bounded JSON body into dst and runs struct validation.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &services.ValidationError{Message: "Request body is required"}
		}
		return &services.ValidationError{Message: "Invalid request body"}
	}
	if err := validate.Struct(dst); err != nil {
		return &services.ValidationError{Message: validationMessage(err)}
	}
	return nil
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "Invalid request body"
	}
	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "Invalid email address"
	default:
		return "Invalid value for " + field
	}
}

func parseClusterID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "clusterID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, &services.ValidationError{Message: "Invalid cluster id"}
	}
	return id, nil
}

func sessionFromRequest(r *http.Request) (*auth.Session, error) {
	session, ok := auth.FromContext(r.Context())
	if !ok {
		return nil, auth.ErrUnauthenticated
	}
	return session, nil
}
