package openid4vp

import (
	"encoding/base64"

	"github.com/skip2/go-qrcode"
)

// QR is a scannable rendering of one authorization request URI.
type QR struct {
	URI        string `json:"uri"`
	RequestURI string `json:"request_uri"`
	Base64PNG  string `json:"base64_png"`
}

// GenerateQR renders uri as a PNG QR code of size x size pixels.
func GenerateQR(uri, requestURI string, level qrcode.RecoveryLevel, size int) (*QR, error) {
	png, err := qrcode.Encode(uri, level, size)
	if err != nil {
		return nil, err
	}
	return &QR{
		URI:        uri,
		RequestURI: requestURI,
		Base64PNG:  base64.StdEncoding.EncodeToString(png),
	}, nil
}
