// Package freshness decide si un token cacheado se puede reusar o hay que
// refrescarlo. Es una función pura: solo depende del record y del reloj.
package freshness

import (
	"errors"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/tokenbooth/internal/store"
)

// Decision es el resultado de evaluar un record cacheado.
type Decision string

const (
	// Reuse: el token sigue vigente, devolver el cacheado sin tocar el provider.
	Reuse Decision = "reuse"
	// Refresh: el token expiró o no se pudo leer, pedir uno nuevo para la
	// identity existente.
	Refresh Decision = "refresh"
	// Mint: no hay record, crear identity y token desde cero.
	// Decide nunca lo retorna; lo produce el caller cuando FindPrincipal da nil.
	Mint Decision = "mint"
)

// ErrTokenDecode marca un token cacheado que no se pudo decodificar.
// No escala al caller: la política lo trata como expirado.
var ErrTokenDecode = errors.New("token decode failed")

// PeekExpiryUnverified extrae el claim exp del JWT SIN verificar la firma.
//
// Esto es intencional: el broker confía en el issuer (él mismo pidió el
// token), solo necesita leer la expiración. NO usar como chequeo de
// autenticación.
func PeekExpiryUnverified(token string) (int64, error) {
	parser := jwtv5.NewParser()
	claims := jwtv5.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return 0, errors.Join(ErrTokenDecode, err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, ErrTokenDecode
	}
	return exp.Unix(), nil
}

// Decide aplica la política sobre un record existente.
// now son segundos Unix. Sin ventana de gracia: un token es válido hasta el
// segundo exacto de su expiración (now < exp ⇒ Reuse, si no ⇒ Refresh).
// Un token malformado o sin exp cuenta como expirado.
func Decide(rec *store.PrincipalRecord, now int64) Decision {
	if rec == nil {
		return Mint
	}
	exp, err := PeekExpiryUnverified(rec.Token)
	if err != nil {
		return Refresh
	}
	if now < exp {
		return Reuse
	}
	return Refresh
}
