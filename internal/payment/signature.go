package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

// Sign returns hex(HMAC-SHA256(secret, gatewayOrderID + "|" + gatewayPaymentID)).
func (v *SignatureVerifier) Sign(gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time. Any difference, including case, is a mismatch.
func (v *SignatureVerifier) Verify(gatewayOrderID, gatewayPaymentID, signature string) bool {
	expected := v.Sign(gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
