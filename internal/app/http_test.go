package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dashtodo/api/internal/config"
	"dashtodo/api/internal/graph"
	"dashtodo/api/internal/guard"
	"dashtodo/api/internal/session"
	"dashtodo/api/internal/todo"
)

// worldRepo is a stateful stand-in for the remote data service, good enough
// to run whole sign-up/todo flows through the HTTP handlers.
type worldRepo struct {
	mu       sync.Mutex
	users    map[string]todo.User
	owners   map[string]string
	todos    map[string]todo.Todo
	nextUser int
	nextTodo int
}

func newWorldRepo() *worldRepo {
	return &worldRepo{
		users:  make(map[string]todo.User),
		owners: make(map[string]string),
		todos:  make(map[string]todo.Todo),
	}
}

func (w *worldRepo) FetchUser(_ context.Context, id string) (*todo.User, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	user, ok := w.users[id]
	if !ok {
		return nil, nil
	}
	user.Todos = nil
	for todoID, ownerID := range w.owners {
		if ownerID == id {
			user.Todos = append(user.Todos, w.todos[todoID])
		}
	}
	if user.Todos == nil {
		user.Todos = []todo.Todo{}
	}
	return &user, nil
}

func (w *worldRepo) CreateUser(_ context.Context, name string) (todo.User, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextUser++
	user := todo.User{ID: fmt.Sprintf("u%d", w.nextUser), Name: name, Todos: []todo.Todo{}}
	w.users[user.ID] = user
	return user, nil
}

func (w *worldRepo) CreateTodo(_ context.Context, title, ownerID string) (todo.Todo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.users[ownerID]; !ok {
		return todo.Todo{}, &graph.SemanticError{Message: "Instance not found"}
	}
	w.nextTodo++
	created := todo.Todo{ID: fmt.Sprintf("t%d", w.nextTodo), Title: title, Completed: false}
	w.todos[created.ID] = created
	w.owners[created.ID] = ownerID
	return created, nil
}

func (w *worldRepo) FetchTodoOwner(_ context.Context, todoID string) (*todo.Owner, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ownerID, ok := w.owners[todoID]
	if !ok {
		return nil, nil
	}
	owner := w.users[ownerID]
	return &todo.Owner{ID: owner.ID, Name: owner.Name}, nil
}

func (w *worldRepo) UpdateTodoCompletion(_ context.Context, id string, completed bool) (todo.Todo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	existing, ok := w.todos[id]
	if !ok {
		return todo.Todo{}, &graph.SemanticError{Message: "Instance not found"}
	}
	existing.Completed = completed
	w.todos[id] = existing
	return existing, nil
}

func newWorldServer() *HTTPServer {
	repo := newWorldRepo()
	cfg := config.Config{SessionTTL: time.Hour}
	svc := New(cfg, repo, guard.New(repo), session.NewMemStore())
	return NewHTTPServer(svc, "*")
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	payload := map[string]any{}
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			t.Fatalf("parse response %q: %v", rr.Body.String(), err)
		}
	}
	return rr, payload
}

func signUp(t *testing.T, handler http.Handler, name string) (token, userID string) {
	t.Helper()
	rr, payload := doJSON(t, handler, http.MethodPost, "/api/users", "", map[string]any{"name": name})
	if rr.Code != http.StatusCreated {
		t.Fatalf("sign up %q: expected 201, got %d body=%s", name, rr.Code, rr.Body.String())
	}
	token, _ = payload["token"].(string)
	secret, _ := payload["signinSecret"].(string)
	if token == "" || secret == "" {
		t.Fatalf("sign up %q: missing token or secret in %v", name, payload)
	}
	return token, secret
}

func TestTodoOwnershipScenario(t *testing.T) {
	server := newWorldServer()
	handler := server.Handler()

	aliceToken, aliceID := signUp(t, handler, "Alice")
	bobToken, _ := signUp(t, handler, "Bob")

	// Alice creates a todo; it starts incomplete.
	rr, created := doJSON(t, handler, http.MethodPost, "/api/todos", aliceToken, map[string]any{"title": "Buy milk"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create todo: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	todoID, _ := created["id"].(string)
	if todoID == "" {
		t.Fatalf("expected todo id in %v", created)
	}
	if created["completed"] != false {
		t.Errorf("expected new todo incomplete, got %v", created["completed"])
	}

	// Bob may not complete Alice's todo.
	rr, payload := doJSON(t, handler, http.MethodPatch, "/api/todos/"+todoID, bobToken, map[string]any{"completed": true})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload["code"] != "FORBIDDEN" {
		t.Errorf("expected code FORBIDDEN, got %v", payload["code"])
	}

	// A nonexistent todo denies the same way, for any identity.
	rr, payload = doJSON(t, handler, http.MethodPatch, "/api/todos/no-such-todo", bobToken, map[string]any{"completed": true})
	if rr.Code != http.StatusForbidden || payload["code"] != "FORBIDDEN" {
		t.Fatalf("expected indistinguishable 403 for nonexistent todo, got %d %v", rr.Code, payload)
	}

	// Alice completes it; doing it twice lands in the same state.
	for i := 0; i < 2; i++ {
		rr, payload = doJSON(t, handler, http.MethodPatch, "/api/todos/"+todoID, aliceToken, map[string]any{"completed": true})
		if rr.Code != http.StatusOK {
			t.Fatalf("update %d: expected 200, got %d body=%s", i, rr.Code, rr.Body.String())
		}
		if payload["completed"] != true {
			t.Errorf("update %d: expected completed=true, got %v", i, payload["completed"])
		}
	}

	// Alice's view shows the completed todo.
	rr, me := doJSON(t, handler, http.MethodGet, "/api/me", aliceToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if me["id"] != aliceID {
		t.Errorf("expected id %q, got %v", aliceID, me["id"])
	}
	todos, _ := me["todos"].([]any)
	if len(todos) != 1 {
		t.Fatalf("expected one todo, got %v", me["todos"])
	}
	first, _ := todos[0].(map[string]any)
	if first["title"] != "Buy milk" || first["completed"] != true {
		t.Errorf("unexpected todo %v", first)
	}
}

func TestSignInFlow(t *testing.T) {
	server := newWorldServer()
	handler := server.Handler()

	_, secret := signUp(t, handler, "Alice")

	rr, payload := doJSON(t, handler, http.MethodPost, "/api/session/signin", "", map[string]any{"secret": secret})
	if rr.Code != http.StatusOK {
		t.Fatalf("signin: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	token, _ := payload["token"].(string)
	if token == "" || token == secret {
		t.Fatalf("expected fresh opaque token, got %q", token)
	}

	rr, info := doJSON(t, handler, http.MethodGet, "/api/session", token, nil)
	if rr.Code != http.StatusOK || info["authenticated"] != true {
		t.Fatalf("expected authenticated session, got %d %v", rr.Code, info)
	}

	rr, payload = doJSON(t, handler, http.MethodPost, "/api/session/signin", "", map[string]any{"secret": "wrong"})
	if rr.Code != http.StatusUnauthorized || payload["code"] != "INVALID_SECRET" {
		t.Fatalf("expected 401 INVALID_SECRET, got %d %v", rr.Code, payload)
	}
}

func TestSignOutEndsSession(t *testing.T) {
	server := newWorldServer()
	handler := server.Handler()

	token, _ := signUp(t, handler, "Alice")

	rr, _ := doJSON(t, handler, http.MethodPost, "/api/session/signout", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("signout: expected 200, got %d", rr.Code)
	}

	rr, payload := doJSON(t, handler, http.MethodGet, "/api/me", token, nil)
	if rr.Code != http.StatusUnauthorized || payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected 401 after signout, got %d %v", rr.Code, payload)
	}
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	server := newWorldServer()
	handler := server.Handler()

	for _, route := range []struct {
		method, path string
	}{
		{http.MethodGet, "/api/me"},
		{http.MethodPost, "/api/todos"},
		{http.MethodPatch, "/api/todos/t1"},
	} {
		rr, payload := doJSON(t, handler, route.method, route.path, "", map[string]any{"title": "x", "completed": true})
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", route.method, route.path, rr.Code)
		}
		if payload["code"] != "UNAUTHORIZED" {
			t.Errorf("%s %s: expected code UNAUTHORIZED, got %v", route.method, route.path, payload["code"])
		}
	}
}

// stubExecutor backs a real repository in tests that must never reach the
// network.
type stubExecutor struct{}

func (stubExecutor) Execute(context.Context, string, map[string]any) (json.RawMessage, error) {
	return nil, fmt.Errorf("unexpected network call")
}

func TestCreateUserValidationMapsTo422(t *testing.T) {
	svc := New(config.Config{SessionTTL: time.Hour}, todo.NewRepository(stubExecutor{}), &fakeGuard{}, session.NewMemStore())
	handler := NewHTTPServer(svc, "*").Handler()

	for _, name := range []string{"", strings.Repeat("a", 64)} {
		rr, payload := doJSON(t, handler, http.MethodPost, "/api/users", "", map[string]any{"name": name})
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("name length %d: expected 422, got %d body=%s", len(name), rr.Code, rr.Body.String())
		}
		if payload["code"] != "VALIDATION_ERROR" {
			t.Errorf("name length %d: expected code VALIDATION_ERROR, got %v", len(name), payload["code"])
		}
	}
}

func TestSemanticErrorMapsTo422(t *testing.T) {
	repo := &fakeRepo{
		createTodoFn: func(_ context.Context, _, _ string) (todo.Todo, error) {
			return todo.Todo{}, &graph.SemanticError{Message: "Instance not found"}
		},
		createUserFn: func(_ context.Context, name string) (todo.User, error) {
			return todo.User{ID: "u1", Name: name}, nil
		},
	}
	svc := newTestService(repo, &fakeGuard{allow: true})
	handler := NewHTTPServer(svc, "*").Handler()

	sess, _, err := svc.SignUp(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	rr, payload := doJSON(t, handler, http.MethodPost, "/api/todos", sess.Token, map[string]any{"title": "Buy milk"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload["code"] != "REJECTED" || payload["error"] != "Instance not found" {
		t.Errorf("expected rejection with service message, got %v", payload)
	}
}

func TestTransportErrorMapsTo502(t *testing.T) {
	repo := &fakeRepo{
		createUserFn: func(_ context.Context, name string) (todo.User, error) {
			return todo.User{ID: "u1", Name: name}, nil
		},
		fetchUserFn: func(_ context.Context, _ string) (*todo.User, error) {
			return nil, &graph.TransportError{Err: fmt.Errorf("connection refused")}
		},
	}
	svc := newTestService(repo, &fakeGuard{})
	handler := NewHTTPServer(svc, "*").Handler()

	sess, _, err := svc.SignUp(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	rr, payload := doJSON(t, handler, http.MethodGet, "/api/me", sess.Token, nil)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload["code"] != "UPSTREAM_ERROR" {
		t.Errorf("expected code UPSTREAM_ERROR, got %v", payload["code"])
	}
}

func TestUpdateTodoRequiresCompletedFlag(t *testing.T) {
	server := newWorldServer()
	handler := server.Handler()

	token, _ := signUp(t, handler, "Alice")

	rr, payload := doJSON(t, handler, http.MethodPatch, "/api/todos/t1", token, map[string]any{})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected code VALIDATION_ERROR, got %v", payload["code"])
	}
}

func TestHealth(t *testing.T) {
	server := newWorldServer()
	rr, payload := doJSON(t, server.Handler(), http.MethodGet, "/api/health", "", nil)
	if rr.Code != http.StatusOK || payload["ok"] != true {
		t.Fatalf("expected healthy, got %d %v", rr.Code, payload)
	}
}
