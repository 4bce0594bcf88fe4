package snapshot

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/canopy-network/stakedrop/pkg/airdrop"
	"github.com/go-jose/go-jose/v4/json"
)

// EncodeManifest writes m as indented JSON.
func EncodeManifest(w io.Writer, m *airdrop.Manifest) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(raw, '\n'))
	return err
}

// WriteManifest writes m to path atomically through a temp file in the same directory.
func WriteManifest(path string, m *airdrop.Manifest) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".manifest-*.json")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := EncodeManifest(tmp, m); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ManifestPath names the file of m inside dir.
func ManifestPath(dir string, m *airdrop.Manifest) string {
	return filepath.Join(dir, fmt.Sprintf("%d-%d-%d-%s.json", m.ChainID, m.StartHeight, m.EndHeight, m.MerkleTree.Root.Hex()))
}
