// Package extid derives the stable identity of a browser extension from its
// manifest public key, and the redirect URL the auth service has to allow.
package extid

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/optionsauth/internal/filex"
)

const (
	DefaultScheme = "chrome-extension"
	OptionsPage   = "options.html"

	keyBits = 2048
	idBytes = 16
)

var (
	ErrInvalidKey = errors.New("invalid extension public key")
	ErrNoPEMBlock = errors.New("no PEM block found")
)

// Key is a manifest key pair. PublicKey is the base64 DER value of the
// manifest "key" field; PrivateKeyPEM is used when packing the extension.
type Key struct {
	PublicKey     string
	PrivateKeyPEM []byte
}

// IDFromPublicKey computes the extension id for a base64 DER public key: the
// first 16 bytes of its SHA-256, hex encoded with digits 0-f shifted to a-p.
func IDFromPublicKey(publicKey string) (string, error) {
	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(publicKey))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if _, err := x509.ParsePKIXPublicKey(der); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	sum := sha256.Sum256(der)
	return fromHex(hex.EncodeToString(sum[:idBytes])), nil
}

func fromHex(h string) string {
	b := []byte(h)
	for i, c := range b {
		switch {
		case c >= '0' && c <= '9':
			b[i] = 'a' + (c - '0')
		case c >= 'a' && c <= 'f':
			b[i] = 'k' + (c - 'a')
		}
	}
	return string(b)
}

// RedirectURL is the options page address of the extension,
// <scheme>://<id>/options.html.
func RedirectURL(scheme, id string) string {
	if scheme == "" {
		scheme = DefaultScheme
	}
	return fmt.Sprintf("%s://%s/%s", scheme, id, OptionsPage)
}

// GenerateKey creates a fresh RSA key pair for the manifest.
func GenerateKey() (*Key, error) {
	pk, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	return keyFromPrivate(pk)
}

// ParsePrivateKeyPEM loads a PKCS#8 or PKCS#1 RSA private key and returns the
// matching manifest key.
func ParsePrivateKeyPEM(data []byte) (*Key, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrNoPEMBlock
	}

	var (
		pk  *rsa.PrivateKey
		err error
	)
	switch block.Type {
	case "RSA PRIVATE KEY":
		pk, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	default:
		var k any
		k, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err == nil {
			var ok bool
			if pk, ok = k.(*rsa.PrivateKey); !ok {
				err = fmt.Errorf("unsupported key type %T", k)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return keyFromPrivate(pk)
}

func keyFromPrivate(pk *rsa.PrivateKey) (*Key, error) {
	pub, err := x509.MarshalPKIXPublicKey(&pk.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	priv, err := x509.MarshalPKCS8PrivateKey(pk)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	return &Key{
		PublicKey:     base64.StdEncoding.EncodeToString(pub),
		PrivateKeyPEM: pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: priv}),
	}, nil
}

// WritePrivateKey stores the PEM private key at path with owner-only
// permissions, creating parent directories.
func WritePrivateKey(path string, k *Key) error {
	if err := filex.EnsureParentDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, k.PrivateKeyPEM, 0o600)
}

// PatchManifest sets the "key" field of a manifest.json. Other fields are kept.
func PatchManifest(path, publicKey string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode manifest: %w", err)
	}

	key, err := json.Marshal(publicKey)
	if err != nil {
		return err
	}
	m["key"] = key

	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(path, append(out, '\n'), 0o644)
}
