package writer

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/paradisepdf/pagekit/ir/raw"
)

// WriteFile writes doc to path atomically: the output goes to a temporary
// file in the same directory which replaces path only after a successful
// write and sync.
func WriteFile(ctx context.Context, w Writer, doc *raw.Document, path string, cfg Config) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = w.Write(ctx, doc, tmp, cfg); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Join(err, os.Remove(tmp.Name()))
	}
	return nil
}
