// Package session gère le cookie de session (utilisateur connecté) et les
// notices flash affichées après une redirection.
package session

import (
	"encoding/gob"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	cookieName = "shop_session"
	userIDKey  = "user_id"
)

// Niveaux de notice
const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelInfo    = "info"
)

// Notice est un message flash. Field vaut "" pour un message général.
type Notice struct {
	Level   string `json:"level"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func init() {
	gob.Register(Notice{})
}

type Manager struct {
	store sessions.Store
}

func NewManager(secret string, secure bool) *Manager {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 14,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{store: store}
}

func (m *Manager) get(c *gin.Context) *sessions.Session {
	// une session invalide (secret changé) est remplacée par une neuve
	s, _ := m.store.Get(c.Request, cookieName)
	return s
}

func (m *Manager) save(c *gin.Context, s *sessions.Session) error {
	return s.Save(c.Request, c.Writer)
}

// Login associe la session à userID
func (m *Manager) Login(c *gin.Context, userID uuid.UUID) error {
	s := m.get(c)
	s.Values[userIDKey] = userID.String()
	return m.save(c, s)
}

// Logout vide la session et expire le cookie
func (m *Manager) Logout(c *gin.Context) error {
	s := m.get(c)
	s.Values = map[interface{}]interface{}{}
	s.Options.MaxAge = -1
	return m.save(c, s)
}

// UserID retourne l'utilisateur de la session, ok=false si anonyme
func (m *Manager) UserID(c *gin.Context) (uuid.UUID, bool) {
	raw, ok := m.get(c).Values[userIDKey].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// AddNotices empile des notices pour la prochaine requête
func (m *Manager) AddNotices(c *gin.Context, notices ...Notice) error {
	s := m.get(c)
	for _, n := range notices {
		s.AddFlash(n)
	}
	return m.save(c, s)
}

// Notices consomme les notices en attente
func (m *Manager) Notices(c *gin.Context) []Notice {
	s := m.get(c)
	flashes := s.Flashes()
	if len(flashes) == 0 {
		return []Notice{}
	}
	_ = m.save(c, s)

	notices := make([]Notice, 0, len(flashes))
	for _, f := range flashes {
		if n, ok := f.(Notice); ok {
			notices = append(notices, n)
		}
	}
	return notices
}
