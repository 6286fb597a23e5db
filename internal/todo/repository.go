// Package todo exposes the fixed repository of operations the application
// performs against the remote data service: create user, create todo, fetch
// a user with todos, fetch a todo's owner, update a todo's completion flag.
package todo

import (
	"context"
	"encoding/json"
	"unicode/utf8"

	"dashtodo/api/internal/graph"
)

// Limits enforced locally before any network call.
const (
	MaxNameLen  = 64
	MaxTitleLen = 256
	MaxIDLen    = 64
)

// User is an account on the data service. Todos holds the owned todos in the
// order the service returned them; the order is not guaranteed stable.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Todos []Todo `json:"todos"`
}

// Todo is one todo item. The owner is fixed at creation and never carried on
// the entity itself; FetchTodoOwner resolves it.
type Todo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Owner identifies the single user permitted to mutate a todo.
type Owner struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Executor is the query gateway the repository runs operations through.
type Executor interface {
	Execute(ctx context.Context, operation string, variables map[string]any) (json.RawMessage, error)
}

// Repository binds each operation to its fixed query shape and decodes the
// nested response into flat entities. Gateway errors pass through unchanged.
type Repository struct {
	graph Executor
}

func NewRepository(g Executor) *Repository {
	return &Repository{graph: g}
}

const fetchUserQuery = `
query($id: ID!) {
  findUserByID(id: $id) {
    _id
    name
    todos {
      data {
        _id
        title
        completed
      }
    }
  }
}`

// FetchUser looks up a user and their todos. A nil user with a nil error
// means no such user exists; that is an answer, not a failure.
func (r *Repository) FetchUser(ctx context.Context, id string) (*User, error) {
	if err := validateID("id", id); err != nil {
		return nil, err
	}
	data, err := r.graph.Execute(ctx, fetchUserQuery, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}

	var payload struct {
		FindUserByID *struct {
			ID    string `json:"_id"`
			Name  string `json:"name"`
			Todos *struct {
				Data []wireTodo `json:"data"`
			} `json:"todos"`
		} `json:"findUserByID"`
	}
	if err := decode(data, &payload); err != nil {
		return nil, err
	}
	if payload.FindUserByID == nil {
		return nil, nil
	}
	found := payload.FindUserByID
	if found.ID == "" {
		return nil, missingField("findUserByID._id")
	}
	if found.Todos == nil {
		return nil, missingField("findUserByID.todos")
	}

	todos := make([]Todo, 0, len(found.Todos.Data))
	for _, t := range found.Todos.Data {
		todo, err := t.entity("findUserByID.todos.data")
		if err != nil {
			return nil, err
		}
		todos = append(todos, todo)
	}
	return &User{ID: found.ID, Name: found.Name, Todos: todos}, nil
}

const createUserMutation = `
mutation($name: String!) {
  createUser(data: { name: $name }) {
    _id
    name
  }
}`

// CreateUser registers a new account. The returned user starts with no todos.
func (r *Repository) CreateUser(ctx context.Context, name string) (User, error) {
	if err := validateName(name); err != nil {
		return User{}, err
	}
	data, err := r.graph.Execute(ctx, createUserMutation, map[string]any{"name": name})
	if err != nil {
		return User{}, err
	}

	var payload struct {
		CreateUser *struct {
			ID   string `json:"_id"`
			Name string `json:"name"`
		} `json:"createUser"`
	}
	if err := decode(data, &payload); err != nil {
		return User{}, err
	}
	if payload.CreateUser == nil || payload.CreateUser.ID == "" {
		return User{}, missingField("createUser._id")
	}
	return User{ID: payload.CreateUser.ID, Name: payload.CreateUser.Name, Todos: []Todo{}}, nil
}

const createTodoMutation = `
mutation($title: String!, $owner: ID!) {
  createTodo(
    data: { title: $title, completed: false, owner: { connect: $owner } }
  ) {
    _id
    title
    completed
  }
}`

// CreateTodo creates a todo owned by ownerID, always with completed=false.
// An ownerID that references no user is rejected by the data service as a
// semantic error.
func (r *Repository) CreateTodo(ctx context.Context, title, ownerID string) (Todo, error) {
	if err := validateTitle(title); err != nil {
		return Todo{}, err
	}
	if err := validateID("owner", ownerID); err != nil {
		return Todo{}, err
	}
	data, err := r.graph.Execute(ctx, createTodoMutation, map[string]any{
		"title": title,
		"owner": ownerID,
	})
	if err != nil {
		return Todo{}, err
	}

	var payload struct {
		CreateTodo *wireTodo `json:"createTodo"`
	}
	if err := decode(data, &payload); err != nil {
		return Todo{}, err
	}
	if payload.CreateTodo == nil {
		return Todo{}, missingField("createTodo")
	}
	return payload.CreateTodo.entity("createTodo")
}

const fetchTodoOwnerQuery = `
query($id: ID!) {
  findTodoByID(id: $id) {
    owner {
      _id
      name
    }
  }
}`

// FetchTodoOwner resolves the owning user of a todo. A nil owner with a nil
// error means the todo does not exist.
func (r *Repository) FetchTodoOwner(ctx context.Context, todoID string) (*Owner, error) {
	if err := validateID("id", todoID); err != nil {
		return nil, err
	}
	data, err := r.graph.Execute(ctx, fetchTodoOwnerQuery, map[string]any{"id": todoID})
	if err != nil {
		return nil, err
	}

	var payload struct {
		FindTodoByID *struct {
			Owner *struct {
				ID   string `json:"_id"`
				Name string `json:"name"`
			} `json:"owner"`
		} `json:"findTodoByID"`
	}
	if err := decode(data, &payload); err != nil {
		return nil, err
	}
	if payload.FindTodoByID == nil {
		return nil, nil
	}
	// Every todo has exactly one owner; a found todo without one is a
	// malformed answer, not an absent one.
	owner := payload.FindTodoByID.Owner
	if owner == nil || owner.ID == "" {
		return nil, missingField("findTodoByID.owner._id")
	}
	return &Owner{ID: owner.ID, Name: owner.Name}, nil
}

const updateTodoMutation = `
mutation($id: ID!, $completed: Boolean!) {
  partialUpdateTodo(id: $id, data: { completed: $completed }) {
    _id
    title
    completed
  }
}`

// UpdateTodoCompletion sets the completion flag, the only mutable field. An
// id that references no todo is rejected by the data service as a semantic
// error. The update is idempotent.
func (r *Repository) UpdateTodoCompletion(ctx context.Context, id string, completed bool) (Todo, error) {
	if err := validateID("id", id); err != nil {
		return Todo{}, err
	}
	data, err := r.graph.Execute(ctx, updateTodoMutation, map[string]any{
		"id":        id,
		"completed": completed,
	})
	if err != nil {
		return Todo{}, err
	}

	var payload struct {
		PartialUpdateTodo *wireTodo `json:"partialUpdateTodo"`
	}
	if err := decode(data, &payload); err != nil {
		return Todo{}, err
	}
	if payload.PartialUpdateTodo == nil {
		return Todo{}, missingField("partialUpdateTodo")
	}
	return payload.PartialUpdateTodo.entity("partialUpdateTodo")
}

// wireTodo is the nested shape todos arrive in; entity flattens it and
// insists on the fields every requested shape includes.
type wireTodo struct {
	ID        string `json:"_id"`
	Title     string `json:"title"`
	Completed *bool  `json:"completed"`
}

func (t wireTodo) entity(where string) (Todo, error) {
	if t.ID == "" {
		return Todo{}, missingField(where + "._id")
	}
	if t.Completed == nil {
		return Todo{}, missingField(where + ".completed")
	}
	return Todo{ID: t.ID, Title: t.Title, Completed: *t.Completed}, nil
}

func decode(data json.RawMessage, target any) error {
	if err := json.Unmarshal(data, target); err != nil {
		return &graph.MalformedResponseError{Reason: "decode payload", Err: err}
	}
	return nil
}

func missingField(field string) error {
	return &graph.MalformedResponseError{Reason: "missing expected field " + field}
}

func validateName(name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(name) >= MaxNameLen {
		return &ValidationError{Field: "name", Reason: "must be shorter than 64 characters"}
	}
	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(title) >= MaxTitleLen {
		return &ValidationError{Field: "title", Reason: "must be shorter than 256 characters"}
	}
	return nil
}

func validateID(field, id string) error {
	if id == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	return nil
}
