package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pankbase/functional/internal/platform/auth"
)

// AuditEntry describes one state-changing request: a dataset reload or a
// change to the external source registry.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	Action     string // reload, create, delete
	Target     string
	Method     string
	Path       string
	IPAddress  string
	UserAgent  string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// AuditRecorder persists audit entries beyond the log stream.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every mutating request under /api/v1 together with the caller
// identity and outcome. Reads are not audited.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !isAuditable(req.Method, req.URL.Path) {
				return next(c)
			}

			err := next(c)

			ctx := req.Context()
			entry := AuditEntry{
				UserID:     auth.UserIDFromContext(ctx),
				UserRoles:  auth.RolesFromContext(ctx),
				Action:     auditAction(req.Method, req.URL.Path),
				Target:     auditTarget(req.URL.Path),
				Method:     req.Method,
				Path:       req.URL.Path,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: statusOf(c, err),
				Timestamp:  time.Now().UTC(),
			}
			entry.RequestID, _ = c.Get("request_id").(string)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			evt := logger.Info()
			if entry.StatusCode == http.StatusUnauthorized || entry.StatusCode == http.StatusForbidden {
				evt = logger.Warn()
			}
			evt.
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("action", entry.Action).
				Str("target", entry.Target).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("mutation")

			return err
		}
	}
}

// isAuditable reports whether a request can change server state. Analysis
// POSTs are computations and are skipped.
func isAuditable(method, path string) bool {
	if !strings.HasPrefix(path, "/api/v1/") {
		return false
	}
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	rest := strings.TrimPrefix(path, "/api/v1/")
	return strings.HasPrefix(rest, "admin/") || strings.HasPrefix(rest, "integration/sources")
}

func auditAction(method, path string) string {
	if strings.HasSuffix(path, "/reload") {
		return "reload"
	}
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

// auditTarget names the object acted on: "dataset" for admin routes, the
// source name for registry routes.
//
//	/api/v1/admin/reload                 -> dataset
//	/api/v1/integration/sources          -> sources
//	/api/v1/integration/sources/islet-qc -> sources/islet-qc
func auditTarget(path string) string {
	rest := strings.TrimPrefix(path, "/api/v1/")
	if strings.HasPrefix(rest, "admin/") {
		return "dataset"
	}
	return strings.TrimPrefix(strings.TrimSuffix(rest, "/"), "integration/")
}
