package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "backoffice:session:"

// Notice is a one-shot message shown after a redirect or returned once by the API.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// SessionManager keeps cookie sessions in Redis.
type SessionManager struct {
	client     redis.Cmdable
	cookieName string
	ttl        time.Duration
	secure     bool
}

// Session holds per-request session state.
type Session struct {
	ID        string
	values    map[string]string
	userID    string
	notices   []Notice
	isNew     bool
	dirty     bool
	destroyed bool
	previous  string
}

type sessionRecord struct {
	Values  map[string]string `json:"values"`
	UserID  string            `json:"user_id"`
	Notices []Notice          `json:"notices,omitempty"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client redis.Cmdable, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	if cookieName == "" {
		cookieName = "backoffice_session"
	}
	return &SessionManager{client: client, cookieName: cookieName, ttl: ttl, secure: secure}
}

// Load returns the session referenced by the request cookie or a fresh one.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && cookie.Value == "") {
		return sm.fresh(), nil
	}
	if err != nil {
		return nil, err
	}

	raw, err := sm.client.Get(ctx, sessionKeyPrefix+cookie.Value).Bytes()
	if errors.Is(err, redis.Nil) {
		return sm.fresh(), nil
	}
	if err != nil {
		return nil, err
	}

	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	if rec.Values == nil {
		rec.Values = make(map[string]string)
	}
	return &Session{ID: cookie.Value, values: rec.Values, userID: rec.UserID, notices: rec.Notices}, nil
}

// Commit persists dirty sessions and refreshes the cookie.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}
	if sess.previous != "" {
		if err := sm.client.Del(ctx, sessionKeyPrefix+sess.previous).Err(); err != nil {
			return err
		}
		sess.previous = ""
	}
	if sess.destroyed {
		if err := sm.client.Del(ctx, sessionKeyPrefix+sess.ID).Err(); err != nil {
			return err
		}
		http.SetCookie(w, sm.cookie("", -1))
		return nil
	}
	if !sess.dirty && !sess.isNew {
		return nil
	}
	data, err := json.Marshal(sessionRecord{Values: sess.values, UserID: sess.userID, Notices: sess.notices})
	if err != nil {
		return err
	}
	if err := sm.client.Set(ctx, sessionKeyPrefix+sess.ID, data, sm.ttl).Err(); err != nil {
		return err
	}
	sess.dirty, sess.isNew = false, false
	http.SetCookie(w, sm.cookie(sess.ID, int(sm.ttl.Seconds())))
	return nil
}

// Renew rotates the session id, typically right after login.
func (sm *SessionManager) Renew(sess *Session) {
	if sess == nil {
		return
	}
	if !sess.isNew {
		sess.previous = sess.ID
	}
	sess.ID = uuid.NewString()
	sess.dirty = true
}

// Destroy marks the session for deletion on the next Commit.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess != nil {
		sess.destroyed = true
	}
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration { return sm.ttl }

func (sm *SessionManager) fresh() *Session {
	return &Session{ID: uuid.NewString(), values: make(map[string]string), isNew: true}
}

func (sm *SessionManager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string { return s.values[key] }

// SetUser binds the session to a user id.
func (s *Session) SetUser(id string) {
	s.userID = id
	s.dirty = true
}

// User returns the bound user id, empty for anonymous sessions.
func (s *Session) User() string { return s.userID }

// AddNotice queues a notice for the next response.
func (s *Session) AddNotice(n Notice) {
	s.notices = append(s.notices, n)
	s.dirty = true
}

// DrainNotices returns and clears all queued notices.
func (s *Session) DrainNotices() []Notice {
	if len(s.notices) == 0 {
		return nil
	}
	out := s.notices
	s.notices = nil
	s.dirty = true
	return out
}
