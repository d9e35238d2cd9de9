// Package cache provee una abstracción de cache con soporte multi-backend.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
//
// Lo usa el session store de federación para guardar el code_verifier
// entre las dos piernas del flujo PKCE.
package cache

import "time"

// Cache define las operaciones mínimas que necesita el broker.
type Cache interface {
	// Get obtiene un valor. El segundo retorno indica si la key existe.
	Get(k string) ([]byte, bool)

	// GetDel obtiene un valor y lo elimina atómicamente: de N callers
	// concurrentes con la misma key, exactamente uno la recibe.
	GetDel(k string) ([]byte, bool)

	// Set guarda un valor con TTL. Si ttl es 0 usa el default del backend.
	Set(k string, v []byte, ttl time.Duration)

	// Delete elimina una key. No falla si no existe.
	Delete(k string)
}
