package recording

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	sErrors "github.com/johnstarich/replayer/errors"
	"github.com/pkg/errors"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaID = "https://github.com/johnstarich/replayer/schemas/recording.json"

var (
	compileOnce    sync.Once
	compiledSchema *sjsonschema.Schema
	compileErr     error
)

// Schema produces a JSON Schema document describing Recording.
// Unknown step and assertion kinds are allowed: playback skips them.
func Schema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.AllowAdditionalProperties = true

	s := r.Reflect(&Recording{})
	s.ID = schemaID
	s.Title = "Browser recording"
	s.Description = "Ordered browser steps replayed by replayer"
	data, err := json.MarshalIndent(s, "", "  ")
	return data, errors.Wrap(err, "Failed to marshal recording schema")
}

func compile() (*sjsonschema.Schema, error) {
	compileOnce.Do(func() {
		schemaJSON, err := Schema()
		if err != nil {
			compileErr = err
			return
		}
		schemaDoc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			compileErr = errors.Wrap(err, "Failed to decode recording schema")
			return
		}
		c := sjsonschema.NewCompiler()
		if err := c.AddResource(schemaID, schemaDoc); err != nil {
			compileErr = errors.Wrap(err, "Failed to add recording schema")
			return
		}
		compiledSchema, compileErr = c.Compile(schemaID)
		compileErr = errors.Wrap(compileErr, "Failed to compile recording schema")
	})
	return compiledSchema, compileErr
}

// Validate checks a JSON recording document against Schema.
// Validation failures are returned as an errors.Errors with one entry per failing location.
func Validate(data []byte) error {
	sch, err := compile()
	if err != nil {
		return err
	}
	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "Recording is not valid JSON")
	}
	err = sch.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*sjsonschema.ValidationError)
	if !ok {
		return err
	}
	var errs sErrors.Errors
	for _, cause := range leafCauses(ve) {
		errs.Addf("/%s: %s", strings.Join(cause.InstanceLocation, "/"), fmt.Sprint(cause.ErrorKind))
	}
	return errs.ErrOrNil()
}

func leafCauses(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var leaves []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		leaves = append(leaves, leafCauses(cause)...)
	}
	return leaves
}
