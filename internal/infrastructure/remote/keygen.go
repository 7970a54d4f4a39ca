package remote

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

var ErrKeyExists = errors.New("ssh: key already exists")

// GenerateSandboxKey writes an ed25519 key pair for the ssh executor
// backend and returns the authorized_keys line to install on the sandbox
// host. An existing private key is left alone unless overwrite is set.
func GenerateSandboxKey(privateKeyPath string, overwrite bool) (string, error) {
	if _, err := os.Stat(privateKeyPath); err == nil && !overwrite {
		return "", fmt.Errorf("%w: %s", ErrKeyExists, privateKeyPath)
	}

	if err := os.MkdirAll(filepath.Dir(privateKeyPath), 0700); err != nil {
		return "", fmt.Errorf("failed to create key directory: %w", err)
	}

	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate key pair: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(privKey, "agentdock-sandbox")
	if err != nil {
		return "", fmt.Errorf("failed to marshal private key: %w", err)
	}
	if err := os.WriteFile(privateKeyPath, pem.EncodeToMemory(block), 0600); err != nil {
		return "", fmt.Errorf("failed to write private key: %w", err)
	}

	sshPubKey, err := ssh.NewPublicKey(pubKey)
	if err != nil {
		return "", fmt.Errorf("failed to create public key: %w", err)
	}
	authorized := ssh.MarshalAuthorizedKey(sshPubKey)
	if err := os.WriteFile(privateKeyPath+".pub", authorized, 0644); err != nil {
		return "", fmt.Errorf("failed to write public key: %w", err)
	}
	return string(authorized), nil
}
