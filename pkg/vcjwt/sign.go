package vcjwt

import (
	"crypto/ecdsa"

	"github.com/golang-jwt/jwt/v5"
)

// SignVC signs credential claims as a compact ES256 JWS.
func SignVC(claims *VCClaims, key *ecdsa.PrivateKey, kid string) (string, error) {
	return sign(claims, key, kid)
}

// SignVP signs presentation claims as a compact ES256 JWS.
func SignVP(claims *VPClaims, key *ecdsa.PrivateKey, kid string) (string, error) {
	return sign(claims, key, kid)
}

func sign(claims jwt.Claims, key *ecdsa.PrivateKey, kid string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	return token.SignedString(key)
}
