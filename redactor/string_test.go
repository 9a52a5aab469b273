package redactor

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestStringMarshalsToNothing(t *testing.T) {
	result, err := json.Marshal(String("testing"))
	require.NoError(t, err)
	assert.Equal(t, "null", string(result))
}

func TestStringPrintsRedacted(t *testing.T) {
	s := String("hunter2")
	assert.Equal(t, "[redacted]", fmt.Sprint(s))
	assert.Equal(t, "[redacted]", fmt.Sprintf("%#v", s))
	assert.Equal(t, "", fmt.Sprint(String("")))
	assert.Equal(t, "hunter2", s.Reveal())
}

func TestStringUnmarshals(t *testing.T) {
	someStruct := struct {
		Username string
		Password String
	}{}
	err := json.Unmarshal([]byte(`{"Username":"username", "Password":"password"}`), &someStruct)
	require.NoError(t, err)
	assert.Equal(t, "username", someStruct.Username)
	assert.Equal(t, String("password"), someStruct.Password)

	var p String
	require.NoError(t, json.Unmarshal([]byte(`null`), &p))
	assert.Equal(t, String(""), p)
}

func TestStringUnmarshalsYAML(t *testing.T) {
	var cfg struct {
		Password String `yaml:"password"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("password: s3cret\n"), &cfg))
	assert.Equal(t, "s3cret", cfg.Password.Reveal())
}
