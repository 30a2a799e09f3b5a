package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"pair-alert-bot/internal/database"
)

// FileSnapshotter keeps the document in a JSON file.
// Writes go to a temporary file that is renamed over the target.
type FileSnapshotter struct {
	path string
}

func NewFileSnapshotter(path string) *FileSnapshotter {
	return &FileSnapshotter{path: path}
}

func (f *FileSnapshotter) Save(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return errors.Wrap(err, "could not encode rule snapshot")
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return errors.Wrap(err, "could not create snapshot directory")
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "could not write %s", tmp)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return errors.Wrapf(err, "could not replace %s", f.path)
	}
	return nil
}

func (f *FileSnapshotter) Load() (Document, bool, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, errors.Wrapf(err, "could not read %s", f.path)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, errors.Wrapf(err, "could not decode %s", f.path)
	}
	return doc, true, nil
}

// SQLiteSnapshotter keeps the document as a single row of the bot database
type SQLiteSnapshotter struct{}

func NewSQLiteSnapshotter() *SQLiteSnapshotter {
	return &SQLiteSnapshotter{}
}

func (SQLiteSnapshotter) Save(doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "could not encode rule snapshot")
	}
	return database.SaveRuleSnapshot(data)
}

func (SQLiteSnapshotter) Load() (Document, bool, error) {
	data, found, err := database.LoadRuleSnapshot()
	if err != nil || !found {
		return nil, false, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, errors.Wrap(err, "could not decode rule snapshot")
	}
	return doc, true, nil
}
