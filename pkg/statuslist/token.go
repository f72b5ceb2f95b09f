package statuslist

import (
	"encoding/base64"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType is the JOSE typ of a status list token.
const TokenType = "statuslist+jwt"

// Claims is the JWT payload of a status list token. The sub claim is the
// URL the list is served from.
type Claims struct {
	jwt.RegisteredClaims
	StatusList EncodedList `json:"status_list"`
}

// EncodedList is the compressed list as carried on the wire.
type EncodedList struct {
	Bits int    `json:"bits"`
	List string `json:"lst"`
}

// BitString inflates the carried list.
func (e *EncodedList) BitString() (*BitString, error) {
	compressed, err := decodeBase64URL(e.List)
	if err != nil {
		return nil, err
	}
	return Decompress(compressed)
}

// decodeBase64URL accepts both padded and unpadded encodings.
func decodeBase64URL(s string) ([]byte, error) {
	if strings.ContainsRune(s, '=') {
		return base64.URLEncoding.DecodeString(s)
	}
	return base64.RawURLEncoding.DecodeString(s)
}
