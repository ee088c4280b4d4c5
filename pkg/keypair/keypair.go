// Package keypair owns the RSA key material used to authenticate browser
// extensions. Extensions hold the private half and sign requests locally;
// the gateway only ever sees the public half, so possession of the key is
// proven without it crossing the network.
package keypair

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
)

// DefaultBits is the RSA modulus size for generated key pairs.
const DefaultBits = 2048

var (
	// ErrSigning reports that the private key material could not be used.
	// Treat this as a configuration fault, not a request failure.
	ErrSigning = errors.New("keypair: signing failed")

	// ErrVerification reports malformed public key or signature input.
	// Callers must treat it as "not verified", never as a crash.
	ErrVerification = errors.New("keypair: verification failed")
)

// KeyPair holds a PEM-encoded RSA key pair. The private key is PKCS1,
// the public key is PKIX, matching what the extension tooling emits.
type KeyPair struct {
	PublicKey  []byte
	PrivateKey []byte
}

// Generate produces a fresh 2048-bit RSA key pair using crypto/rand.
// The caller owns persistence; nothing is written anywhere.
func Generate() (KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, DefaultBits)
	if err != nil {
		return KeyPair{}, fmt.Errorf("keypair: generate RSA key: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})

	pubBytes, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return KeyPair{}, fmt.Errorf("keypair: marshal public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})

	return KeyPair{PublicKey: pubPEM, PrivateKey: privPEM}, nil
}

// Sign computes the SHA-256 digest of message and signs it with the
// PEM-encoded private key. The signature comes back base64 (standard
// encoding) so it can travel in an HTTP header.
func Sign(message, privatePEM []byte) (string, error) {
	priv, err := parsePrivateKey(privatePEM)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigning, err)
	}

	digest := sha256.Sum256(message)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigning, err)
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify recomputes the SHA-256 digest of message and checks sigB64
// against the PEM-encoded public key. Malformed keys or signatures
// resolve to (false, err) rather than escaping as a panic; a nil error
// with false never happens, so callers may treat any error as a plain
// rejection.
func Verify(message []byte, sigB64 string, publicPEM []byte) (bool, error) {
	pub, err := parsePublicKey(publicPEM)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrVerification, err)
	}

	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false, fmt.Errorf("%w: bad signature encoding: %w", ErrVerification, err)
	}

	digest := sha256.Sum256(message)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		// Signature mismatch is an expected outcome, not an input fault.
		return false, nil
	}

	return true, nil
}

// parsePrivateKey accepts both PKCS1 and PKCS8 because otherwise we will
// be chasing key-format bugs for longer than we would be willing to admit.
func parsePrivateKey(pemKey []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("invalid PEM for RSA private key")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKCS8: %w", err)
		}
		rk, ok := priv.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("not an RSA private key")
		}
		return rk, nil
	default:
		return nil, fmt.Errorf("unsupported PEM type %q", block.Type)
	}
}

// parsePublicKey accepts PKIX ("PUBLIC KEY") and PKCS1 ("RSA PUBLIC KEY").
func parsePublicKey(pemKey []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("invalid PEM for RSA public key")
	}

	switch block.Type {
	case "PUBLIC KEY":
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKIX: %w", err)
		}
		rk, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("not an RSA public key")
		}
		return rk, nil
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		return nil, fmt.Errorf("unsupported PEM type %q", block.Type)
	}
}
