package federation

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/dropDatabas3/tokenbooth/internal/cache"
)

// Session es el estado pendiente entre las dos piernas del flujo: se crea al
// construir la URL de autorización y se consume en el callback.
//
// Va keyed por el parámetro state (aleatorio) en lugar de un slot global
// único: así pueden convivir varios flujos en vuelo y un callback con state
// ajeno no puede consumir el verifier de otro.
type Session struct {
	Verifier    string    `json:"verifier"`
	RedirectURI string    `json:"redirect_uri"`
	Scopes      []string  `json:"scopes"`
	CreatedAt   time.Time `json:"created_at"`
}

// ErrSessionNotFound indica que el state no corresponde a ningún flujo
// pendiente: nunca existió, expiró, o ya fue consumido.
var ErrSessionNotFound = errors.New("federation session not found")

// SessionStore guarda sesiones pendientes con TTL, single-use.
type SessionStore struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewSessionStore crea el store sobre un backend de cache (memory o redis).
func NewSessionStore(c cache.Cache, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SessionStore{cache: c, ttl: ttl}
}

func sessionKey(state string) string { return "fedflow:" + state }

// Put guarda la sesión bajo su state.
func (s *SessionStore) Put(state string, sess Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	s.cache.Set(sessionKey(state), b, s.ttl)
	return nil
}

// Take obtiene y elimina la sesión (semántica single-use: un code solo se
// puede canjear una vez con su verifier). GetDel es atómico: dos callbacks
// concurrentes con el mismo state no pueden obtener el verifier los dos.
func (s *SessionStore) Take(state string) (*Session, error) {
	b, ok := s.cache.GetDel(sessionKey(state))
	if !ok {
		return nil, ErrSessionNotFound
	}

	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}
