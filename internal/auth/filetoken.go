package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/openvault/archivist/internal/model"
)

// FileTokens signs media URLs. Each served file path derives its own
// encryption key, so a token captured for one file cannot, even when leaked,
// open any other file. The sealed payload carries the bearer credential that
// authorized the link; it is re-checked when the file is fetched.
type FileTokens struct {
	secret []byte
}

const fileTokenInfo = "file-token"

func NewFileTokens(secret string) *FileTokens {
	return &FileTokens{secret: []byte(secret)}
}

type fileTokenPayload struct {
	Credential string `json:"login_token"`
}

func (f *FileTokens) key(path string) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, f.secret, nil, []byte(fileTokenInfo+path))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive file key: %w", err)
	}
	return key, nil
}

// Sign seals the credential into a URL-safe token bound to path.
func (f *FileTokens) Sign(path, credential string) (string, error) {
	key, err := f.key(path)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(fileTokenPayload{Credential: credential})
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, payload, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Verify opens a token for path and returns the credential it carries.
// Tokens minted for any other path fail to open.
func (f *FileTokens) Verify(path, token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", model.ErrInvalidToken
	}
	key, err := f.key(path)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", model.ErrInvalidToken
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	payload, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", model.ErrInvalidToken
	}
	var p fileTokenPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", model.ErrInvalidToken
	}
	return p.Credential, nil
}
