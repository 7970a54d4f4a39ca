package remote

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestWrapInDir(t *testing.T) {
	assert.Equal(t, "ls", WrapInDir("ls", ""))
	assert.Equal(t, "cd '/projects/my app' && ls -la", WrapInDir("ls -la", "/projects/my app"))
}

func TestRunWithoutCredentialsFails(t *testing.T) {
	c := NewSSHClient(SSHConfig{Host: "127.0.0.1", User: "root"})
	res := c.Run(context.Background(), "ls", "/projects")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no credentials provided")
	assert.Equal(t, -1, res.ExitCode)
}

func TestGenerateSandboxKeyIsUsableForAuth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "sandbox_ed25519")

	authorized, err := GenerateSandboxKey(path, false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(authorized, "ssh-ed25519 "))

	pub, err := os.ReadFile(path + ".pub")
	require.NoError(t, err)
	assert.Equal(t, authorized, string(pub))

	private, err := os.ReadFile(path)
	require.NoError(t, err)
	_, err = ssh.ParsePrivateKey(private)
	require.NoError(t, err)

	c := NewSSHClient(SSHConfig{Host: "127.0.0.1", User: "root", PrivateKey: string(private)})
	methods, err := c.getAuthMethods()
	require.NoError(t, err)
	assert.Len(t, methods, 1)
}

func TestGenerateSandboxKeyKeepsExistingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sandbox_ed25519")
	first, err := GenerateSandboxKey(path, false)
	require.NoError(t, err)

	_, err = GenerateSandboxKey(path, false)
	assert.ErrorIs(t, err, ErrKeyExists)

	second, err := GenerateSandboxKey(path, true)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
