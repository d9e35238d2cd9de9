// Package dto define los cuerpos request/response del API del broker.
package dto

import "github.com/dropDatabas3/tokenbooth/internal/store"

// GenerateTokenRequest es el body de POST /generate-token.
type GenerateTokenRequest struct {
	Name string `json:"name"`
}

// GenerateTokenResponse devuelve la credencial del principal.
type GenerateTokenResponse struct {
	Identity string `json:"identity"`
	Token    string `json:"token"`
}

// AllUsersResponse es el contenido completo del store.
type AllUsersResponse struct {
	Principals []store.PrincipalRecord      `json:"principals"`
	Federated  []store.FederatedTokenRecord `json:"federated"`
}
