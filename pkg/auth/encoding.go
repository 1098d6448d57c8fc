package auth

import "encoding/base64"

func b64(b []byte) string {
	return base64.RawStdEncoding.EncodeToString(b)
}

func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(s)
}
