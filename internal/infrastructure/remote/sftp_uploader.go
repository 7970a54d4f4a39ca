package remote

import (
	"context"
	"fmt"
	"path"

	"github.com/pkg/sftp"
)

// SFTPWriter writes files into the sandbox host over SFTP.
type SFTPWriter struct {
	client *SSHClient
}

func NewSFTPWriter(client *SSHClient) *SFTPWriter {
	return &SFTPWriter{client: client}
}

func (w *SFTPWriter) WriteFile(ctx context.Context, filePath string, content []byte) error {
	conn, err := w.client.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	sftpClient, err := sftp.NewClient(conn)
	if err != nil {
		return fmt.Errorf("failed to create sftp client: %w", err)
	}
	defer sftpClient.Close()

	if err := sftpClient.MkdirAll(path.Dir(filePath)); err != nil {
		return fmt.Errorf("failed to create remote directory: %w", err)
	}

	remoteFile, err := sftpClient.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file: %w", err)
	}
	written, err := remoteFile.Write(content)
	if cerr := remoteFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", filePath, err)
	}
	if written != len(content) {
		return fmt.Errorf("upload incomplete: expected %d bytes, got %d", len(content), written)
	}
	return nil
}
