package nagad

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
)

// Merchants paste keys into the back office either as PEM blocks or as the
// bare base64 DER that Nagad's portal hands out; both forms are accepted.

func parsePublicKey(raw string) (*rsa.PublicKey, error) {
	der, err := keyBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return pub, nil
}

func parsePrivateKey(raw string) (*rsa.PrivateKey, error) {
	der, err := keyBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if parsed, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		if priv, ok := parsed.(*rsa.PrivateKey); ok {
			return priv, nil
		}
		return nil, fmt.Errorf("private key is not RSA")
	}
	priv, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return priv, nil
}

// keyBytes returns DER bytes from a PEM block or bare base64 string.
func keyBytes(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if block, _ := pem.Decode([]byte(trimmed)); block != nil {
		return block.Bytes, nil
	}
	// Strip embedded whitespace so multiline base64 survives.
	compact := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, trimmed)
	der, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("not PEM and not base64: %w", err)
	}
	return der, nil
}

// encryptSensitiveData RSA-encrypts the JSON payload with the provider's
// public key, base64-encoded for transport.
func encryptSensitiveData(plaintext []byte, pub *rsa.PublicKey) (string, error) {
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, plaintext)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt sensitive data: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// signPayload signs the plaintext with the merchant's private key (SHA-256).
func signPayload(plaintext []byte, priv *rsa.PrivateKey) (string, error) {
	digest := sha256.Sum256(plaintext)
	signature, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

// decryptSensitiveData reverses the provider's response encryption with the
// merchant private key.
func decryptSensitiveData(encoded string, priv *rsa.PrivateKey) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("sensitive data is not base64: %w", err)
	}
	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, priv, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt sensitive data: %w", err)
	}
	return plaintext, nil
}
