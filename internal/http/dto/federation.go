package dto

import "github.com/dropDatabas3/tokenbooth/internal/store"

// CompleteFederationResponse es el resultado del callback GET /redirect.
type CompleteFederationResponse struct {
	TeamsUserAADToken string                     `json:"teamsUserAadToken"`
	UserObjectID      string                     `json:"userObjectId"`
	FederatedToken    store.FederatedTokenRecord `json:"federatedToken"`
}
