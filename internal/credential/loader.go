package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/config"
)

// Trust anchor names in load order.
const (
	AnchorPrimary = "primary"
	AnchorBackup  = "backup"
)

// Loader populates a Manager with its signing key and trust anchors.
type Loader interface {
	Load(m *Manager) error
}

// InlineLoader takes the key and CAs straight from configuration.
// This is the production path.
type InlineLoader struct {
	PrivateKey string
	PrimaryCA  string
	BackupCA   string
}

// Load implements Loader.
func (l InlineLoader) Load(m *Manager) error {
	if l.PrimaryCA != "" {
		if err := m.AddTrustAnchor(AnchorPrimary, []byte(l.PrimaryCA)); err != nil {
			return err
		}
	}
	if l.BackupCA != "" {
		if err := m.AddTrustAnchor(AnchorBackup, []byte(l.BackupCA)); err != nil {
			return err
		}
	}

	raw, err := DecodeKeyHex(l.PrivateKey)
	if err != nil {
		return err
	}
	return m.LoadPrivateKey(raw)
}

// FileLoader reads DER encoded CAs and a DER EC private key from the flash
// file store. A missing CA file is logged and skipped; Setup still fails if
// neither CA could be read.
type FileLoader struct {
	Dir            string
	PrimaryCAPath  string
	BackupCAPath   string
	PrivateKeyPath string
}

// Load implements Loader.
func (l FileLoader) Load(m *Manager) error {
	for _, ca := range []struct{ name, path string }{
		{AnchorPrimary, l.PrimaryCAPath},
		{AnchorBackup, l.BackupCAPath},
	} {
		if ca.path == "" {
			continue
		}
		path := filepath.Join(l.Dir, ca.path)
		data, err := os.ReadFile(path)
		if err != nil {
			m.logger.Error("failed to open ca file", "name", ca.name, "path", path, "error", err)
			continue
		}
		if err := m.AddTrustAnchor(ca.name, data); err != nil {
			return err
		}
	}

	path := filepath.Join(l.Dir, l.PrivateKeyPath)
	der, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrInvalidKey, path, err)
	}
	raw, err := scalarFromDER(der)
	if err != nil {
		return err
	}
	return m.LoadPrivateKey(raw)
}

// NewLoader selects the loading strategy named by cfg.Source.
func NewLoader(cfg config.CredentialsConfig) (Loader, error) {
	switch cfg.Source {
	case config.CredentialSourceInline, "":
		return InlineLoader{
			PrivateKey: cfg.PrivateKey,
			PrimaryCA:  cfg.PrimaryCA,
			BackupCA:   cfg.BackupCA,
		}, nil
	case config.CredentialSourceFile:
		return FileLoader{
			Dir:            cfg.File.Dir,
			PrimaryCAPath:  cfg.File.PrimaryCAPath,
			BackupCAPath:   cfg.File.BackupCAPath,
			PrivateKeyPath: cfg.File.PrivateKeyPath,
		}, nil
	default:
		return nil, fmt.Errorf("unknown credential source %q", cfg.Source)
	}
}

// Setup runs loader against m and checks the result is usable for a
// connection. Any error is fatal for the device.
func Setup(m *Manager, loader Loader) error {
	if err := loader.Load(m); err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	if m.anchors.Len() == 0 {
		return ErrNoTrustAnchors
	}
	if !m.HasPrivateKey() {
		return errors.New("loading credentials: no private key")
	}
	return nil
}
