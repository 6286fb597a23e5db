package app

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"dashtodo/api/internal/graph"
	"dashtodo/api/internal/todo"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{s.corsOrigin},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
	}))

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/users", s.handleCreateUser)
	r.Get("/api/session", s.handleSessionInfo)
	r.Post("/api/session/signin", s.handleSignIn)
	r.Post("/api/session/signout", s.handleSignOut)
	r.Get("/api/me", s.withSession(s.handleMe))
	r.Post("/api/todos", s.withSession(s.handleAddTodo))
	r.Patch("/api/todos/{id}", s.withSession(s.handleUpdateTodo))
	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	sess, user, err := s.service.SignUp(r.Context(), body.Name)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	// The secret is surfaced exactly once; it cannot be recovered later.
	writeJSON(w, http.StatusCreated, map[string]any{
		"token":        sess.Token,
		"signinSecret": user.ID,
		"user":         map[string]any{"id": user.ID, "name": user.Name},
	})
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Secret string `json:"secret"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	sess, err := s.service.SignIn(r.Context(), body.Secret)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": sess.Token,
		"user":  map[string]any{"id": sess.UserID, "name": sess.UserName},
	})
}

func (s *HTTPServer) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.service.SignOut(r.Context(), bearerToken(r)); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"userId":        sess.UserID,
		"userName":      sess.UserName,
	})
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request, sess Session) {
	user, err := s.service.CurrentUser(r.Context(), sess)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleAddTodo(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	created, err := s.service.AddTodo(r.Context(), sess, body.Title)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *HTTPServer) handleUpdateTodo(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		Completed *bool `json:"completed"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.Completed == nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "completed is required", nil)
		return
	}

	updated, err := s.service.SetTodoCompleted(r.Context(), sess, chi.URLParam(r, "id"), *body.Completed)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// withSession resolves the bearer token before the handler runs; requests
// without a live session never reach it.
func (s *HTTPServer) withSession(next func(http.ResponseWriter, *http.Request, Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.service.SessionFromToken(r.Context(), bearerToken(r))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		next(w, r, sess)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// mapError turns classified failures into stable HTTP outcomes. Validation
// and authorization failures resolve locally; gateway failures surface as a
// structured upstream error instead of escaping the handler.
func mapError(err error) (status int, code, message string, details any) {
	var validation *todo.ValidationError
	if errors.As(err, &validation) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", validation.Error(), map[string]any{"field": validation.Field}
	}
	var semantic *graph.SemanticError
	if errors.As(err, &semantic) {
		return http.StatusUnprocessableEntity, "REJECTED", semantic.Message, nil
	}
	var transport *graph.TransportError
	if errors.As(err, &transport) {
		return http.StatusBadGateway, "UPSTREAM_ERROR", "Data service unavailable", nil
	}
	var malformed *graph.MalformedResponseError
	if errors.As(err, &malformed) {
		return http.StatusBadGateway, "UPSTREAM_ERROR", "Data service returned an unexpected response", nil
	}
	if errors.Is(err, ErrBadCredentials) {
		return http.StatusUnauthorized, "INVALID_SECRET", "Sign-in secret not valid", nil
	}
	if errors.Is(err, ErrUnauthenticated) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden, "FORBIDDEN", "Forbidden", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
