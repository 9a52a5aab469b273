package recording

import (
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Parse decodes a JSON recording document after validating it against Schema
func Parse(data []byte) (Recording, error) {
	if err := Validate(data); err != nil {
		return Recording{}, err
	}
	var rec Recording
	err := json.Unmarshal(data, &rec)
	return rec, errors.Wrap(err, "Failed to decode recording")
}

// Load reads a recording file. Files ending in .yaml or .yml are converted to JSON before parsing.
func Load(path string) (Recording, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Recording{}, errors.Wrapf(err, "Failed to read recording %q", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return Recording{}, errors.Wrapf(err, "Failed to read recording %q", path)
		}
	}
	rec, err := Parse(data)
	return rec, errors.Wrapf(err, "Invalid recording %q", path)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}
