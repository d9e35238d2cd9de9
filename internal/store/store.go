// Package store define el estado durable del broker y el contrato de
// persistencia. El estado completo se carga en memoria al inicio de cada
// operación, se muta, y se escribe de vuelta entero: no hay cache en memoria
// entre requests, el store es la única fuente de verdad.
package store

import (
	"context"
	"errors"
)

// PrincipalRecord es la credencial cacheada de un usuario anónimo de la app.
// name es la key única; identity es inmutable una vez creada; token se
// reemplaza in-place en cada refresh.
type PrincipalRecord struct {
	Name     string `json:"name"`
	Identity string `json:"identity"`
	Token    string `json:"token"`
}

// FederatedTokenRecord es el resultado de intercambiar un token AAD de un
// usuario federado por un token de acceso del servicio.
type FederatedTokenRecord struct {
	UserObjectID string            `json:"userObjectId"`
	AccessToken  string            `json:"accessToken"`
	ExpiresOn    int64             `json:"expiresOn,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Snapshot es el estado completo persistido.
// Federated mantiene orden: el más reciente primero.
type Snapshot struct {
	Principals []PrincipalRecord      `json:"principals"`
	Federated  []FederatedTokenRecord `json:"federated"`
}

// NewSnapshot retorna un estado vacío válido.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Principals: []PrincipalRecord{},
		Federated:  []FederatedTokenRecord{},
	}
}

// FindPrincipal busca un principal por nombre exacto.
// Retorna nil si no existe.
func (s *Snapshot) FindPrincipal(name string) *PrincipalRecord {
	for i := range s.Principals {
		if s.Principals[i].Name == name {
			return &s.Principals[i]
		}
	}
	return nil
}

// UpsertPrincipal inserta el record si no existe, o reemplaza solo el token
// si ya existe. La identity de un record existente nunca se toca.
func (s *Snapshot) UpsertPrincipal(rec PrincipalRecord) {
	for i := range s.Principals {
		if s.Principals[i].Name == rec.Name {
			s.Principals[i].Token = rec.Token
			return
		}
	}
	s.Principals = append(s.Principals, rec)
}

// PrependFederated inserta el record al frente de la secuencia.
// No hay deduplicación por UserObjectID: logins repetidos del mismo usuario
// acumulan records (comportamiento heredado, ver DESIGN.md).
func (s *Snapshot) PrependFederated(rec FederatedTokenRecord) {
	s.Federated = append([]FederatedTokenRecord{rec}, s.Federated...)
}

// LatestFederated retorna el record federado más reciente, o nil si no hay.
func (s *Snapshot) LatestFederated() *FederatedTokenRecord {
	if len(s.Federated) == 0 {
		return nil
	}
	return &s.Federated[0]
}

// ErrStore marca una falla de lectura/escritura del medio durable.
// Las fallas de lectura por ausencia NO son errores: Load retorna el estado
// vacío por defecto.
var ErrStore = errors.New("store failure")

// Store es el contrato de persistencia.
//
// Load nunca falla con "not found": la ausencia de estado previo es un estado
// vacío válido. Save reemplaza el contenido completo de forma atómica (un
// crash a mitad de escritura no debe dejar el store corrupto).
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error

	// Ping verifica que el medio durable esté accesible.
	Ping(ctx context.Context) error

	// Close libera recursos del adapter.
	Close() error
}
