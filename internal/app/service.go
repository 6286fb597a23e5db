// Package app ties the repository, ownership guard, and session store into
// the operations the HTTP layer exposes.
package app

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"dashtodo/api/internal/auth"
	"dashtodo/api/internal/config"
	"dashtodo/api/internal/session"
	"dashtodo/api/internal/todo"
)

// Session is a resolved, live session. Token is the opaque credential the
// client presents; UserID is the identity the core acts as.
type Session struct {
	Token    string
	UserID   string
	UserName string
}

type repository interface {
	FetchUser(ctx context.Context, id string) (*todo.User, error)
	CreateUser(ctx context.Context, name string) (todo.User, error)
	CreateTodo(ctx context.Context, title, ownerID string) (todo.Todo, error)
	UpdateTodoCompletion(ctx context.Context, id string, completed bool) (todo.Todo, error)
}

type authorizer interface {
	Authorize(ctx context.Context, sessionIdentity, todoID string) (bool, error)
}

type Service struct {
	cfg      config.Config
	repo     repository
	guard    authorizer
	sessions session.Store
}

func New(cfg config.Config, repo repository, guard authorizer, sessions session.Store) *Service {
	return &Service{cfg: cfg, repo: repo, guard: guard, sessions: sessions}
}

// SignUp creates an account and signs it in. The returned user's ID doubles
// as the account's sign-in secret on the data service; it is shown once and
// never required on later requests, which carry only the session token.
func (s *Service) SignUp(ctx context.Context, name string) (Session, todo.User, error) {
	user, err := s.repo.CreateUser(ctx, strings.TrimSpace(name))
	if err != nil {
		return Session{}, todo.User{}, err
	}
	sess, err := s.issueSession(ctx, user.ID, user.Name)
	if err != nil {
		return Session{}, todo.User{}, err
	}
	return sess, user, nil
}

// SignIn resolves the sign-in secret to an account and issues a fresh
// session token for it.
func (s *Service) SignIn(ctx context.Context, secret string) (Session, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return Session{}, &todo.ValidationError{Field: "secret", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(secret) >= todo.MaxIDLen {
		return Session{}, &todo.ValidationError{Field: "secret", Reason: "must be shorter than 64 characters"}
	}

	user, err := s.repo.FetchUser(ctx, secret)
	if err != nil {
		return Session{}, err
	}
	if user == nil {
		return Session{}, ErrBadCredentials
	}
	return s.issueSession(ctx, user.ID, user.Name)
}

func (s *Service) issueSession(ctx context.Context, userID, userName string) (Session, error) {
	token, err := auth.NewSessionToken()
	if err != nil {
		return Session{}, err
	}
	rec := session.Record{UserID: userID, UserName: userName}
	if err := s.sessions.Save(ctx, auth.HashToken(token), rec, s.cfg.SessionTTL); err != nil {
		return Session{}, err
	}
	return Session{Token: token, UserID: userID, UserName: userName}, nil
}

// SessionFromToken resolves an opaque token to a live session.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrUnauthenticated
	}
	rec, err := s.sessions.Lookup(ctx, auth.HashToken(token))
	if errors.Is(err, session.ErrNotFound) {
		return Session{}, ErrUnauthenticated
	}
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, UserID: rec.UserID, UserName: rec.UserName}, nil
}

// SignOut revokes the presented token. A missing or unknown token is fine;
// the end state is the same.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, auth.HashToken(token))
}

// CurrentUser fetches the session's account with its todos. If the account
// no longer exists the session is revoked and the caller must sign in again.
func (s *Service) CurrentUser(ctx context.Context, sess Session) (todo.User, error) {
	user, err := s.repo.FetchUser(ctx, sess.UserID)
	if err != nil {
		return todo.User{}, err
	}
	if user == nil {
		_ = s.sessions.Revoke(ctx, auth.HashToken(sess.Token))
		return todo.User{}, ErrUnauthenticated
	}
	return *user, nil
}

// AddTodo creates a todo owned by the session's account.
func (s *Service) AddTodo(ctx context.Context, sess Session, title string) (todo.Todo, error) {
	return s.repo.CreateTodo(ctx, title, sess.UserID)
}

// SetTodoCompleted updates a todo's completion flag after re-verifying that
// the session owns it. The ownership check and the mutation are two round
// trips to the data service; the schema offers no conditional write to fold
// them into one.
func (s *Service) SetTodoCompleted(ctx context.Context, sess Session, todoID string, completed bool) (todo.Todo, error) {
	todoID = strings.TrimSpace(todoID)
	if todoID == "" {
		return todo.Todo{}, &todo.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(todoID) >= todo.MaxIDLen {
		return todo.Todo{}, &todo.ValidationError{Field: "id", Reason: "must be shorter than 64 characters"}
	}

	ok, err := s.guard.Authorize(ctx, sess.UserID, todoID)
	if err != nil {
		return todo.Todo{}, err
	}
	if !ok {
		return todo.Todo{}, ErrForbidden
	}
	return s.repo.UpdateTodoCompletion(ctx, todoID, completed)
}
