package conversation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// SaveToFile writes the log as JSON or YAML, depending on the extension of
// filename.
func (l *Log) SaveToFile(filename string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		data, err = json.MarshalIndent(l, "", "  ")
	case ".yaml", ".yml":
		data, err = l.ToYAML()
	default:
		return errors.Errorf("unsupported conversation file extension %q", filepath.Ext(filename))
	}
	if err != nil {
		return errors.Wrapf(err, "could not serialize conversation log %s", l.ID)
	}

	return os.WriteFile(filename, data, 0644)
}

// LoadFromFile reads a log saved by SaveToFile.
func LoadFromFile(filename string) (*Log, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return FromJSON(data)
	case ".yaml", ".yml":
		return FromYAML(data)
	default:
		return nil, errors.Errorf("unsupported conversation file extension %q", filepath.Ext(filename))
	}
}
