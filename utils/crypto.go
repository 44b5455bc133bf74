package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

func RandomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// SignHex calcule un HMAC-SHA256 hexadécimal de msg.
func SignHex(key, msg string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHex compare en temps constant une signature produite par SignHex.
func VerifyHex(key, msg, signature string) bool {
	return hmac.Equal([]byte(SignHex(key, msg)), []byte(signature))
}
