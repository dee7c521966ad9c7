package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// DataDirectories defines the paths that need to exist for Argus to run.
type DataDirectories struct {
	Base    string // Base data directory (default: ./data)
	Storage string // Namespaced JSON store directory
}

// DefaultDataDirectories returns the default data directory configuration.
// This is used during pre-flight checks before config is loaded.
func DefaultDataDirectories() DataDirectories {
	base := os.Getenv("ARGUS_DATA_DIR")
	if base == "" {
		base = "./data"
	}

	storageDir := os.Getenv("ARGUS_STORAGE_DIR")
	if storageDir == "" {
		storageDir = filepath.Join(base, "storage")
	}

	return DataDirectories{
		Base:    base,
		Storage: storageDir,
	}
}

// EnsureDataDirectories creates required data directories with proper permissions.
// This is a pre-flight check that runs before any service initialization.
func EnsureDataDirectories(sugar *zap.SugaredLogger) (DataDirectories, error) {
	dirs := DefaultDataDirectories()

	for _, dir := range []string{dirs.Base, dirs.Storage} {
		absPath, err := filepath.Abs(dir)
		if err != nil {
			return dirs, fmt.Errorf("failed to resolve absolute path for %s: %w", dir, err)
		}

		if err := os.MkdirAll(absPath, 0755); err != nil {
			return dirs, fmt.Errorf("failed to create directory %s: %w\n"+
				"  Remediation: Ensure the parent directory exists and is writable\n"+
				"  For Docker: Check volume mount permissions\n"+
				"  For bare metal: Run 'mkdir -p %s && chmod 755 %s'", dir, err, absPath, absPath)
		}

		// Verify write permissions
		testFile := filepath.Join(absPath, ".argus_write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			return dirs, fmt.Errorf("directory %s is not writable: %w\n"+
				"  Remediation: Check file system permissions\n"+
				"  For Docker: Ensure volume is mounted with write access\n"+
				"  For bare metal: Run 'chmod -R u+w %s'", dir, err, absPath)
		}
		os.Remove(testFile)

		sugar.Infow("Data directory ready", "path", absPath)
	}

	sugar.Info("All data directories verified")
	return dirs, nil
}
