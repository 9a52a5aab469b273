package recording

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepKindKnown(t *testing.T) {
	for _, kind := range StepKinds {
		assert.True(t, kind.Known(), kind)
	}
	assert.False(t, StepKind("customStep").Known())
	assert.True(t, Click.Interactive())
	assert.True(t, WaitForSelector.Interactive())
	assert.False(t, Navigate.Interactive())
	assert.False(t, DragAndDrop.Interactive())
}

func TestAssertionKindKnown(t *testing.T) {
	for _, kind := range AssertionKinds {
		assert.True(t, kind.Known(), kind)
	}
	assert.False(t, AssertionKind("cookie").Known())
}

func TestRawSelectors(t *testing.T) {
	event := AssertionEvent{
		Selector:  "#first",
		Selectors: [][]string{{"aria/Second", "#second"}, {"#third"}},
	}
	assert.Equal(t, []string{"#first", "aria/Second", "#second", "#third"}, event.RawSelectors())
	assert.Empty(t, AssertionEvent{}.RawSelectors())
}

func TestLoadJSON(t *testing.T) {
	rec, err := Load(filepath.Join("testdata", "login.json"))
	require.NoError(t, err)
	assert.Equal(t, "Log in", rec.Title)
	require.Len(t, rec.Steps, 7)
	assert.Equal(t, SetViewport, rec.Steps[0].Type)
	assert.Equal(t, 1280, rec.Steps[0].Width)
	assert.Equal(t, [][]string{{"aria/Username"}, {"css/#username", "#user"}}, rec.Steps[2].Selectors)
	assert.Equal(t, float64(10), rec.Steps[2].OffsetX)
	assert.Equal(t, []AssertionEvent{{Type: AssertNavigation, URL: "example.test/home", Title: "Home"}}, rec.Steps[6].AssertedEvents)
}

func TestLoadYAML(t *testing.T) {
	rec, err := Load(filepath.Join("testdata", "login.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Recording{
		Title: "Log in",
		Steps: []Step{
			{Type: Navigate, URL: "https://example.test/login"},
			{Type: Click, Selectors: [][]string{{"css/#username"}}},
			{Type: WaitForTimeout, Timeout: 250},
		},
	}, rec)
}

func TestParseAllowsUnknownKinds(t *testing.T) {
	rec, err := Parse([]byte(`{"steps": [{"type": "emulateNetworkConditions", "download": 100}]}`))
	require.NoError(t, err)
	assert.Equal(t, StepKind("emulateNetworkConditions"), rec.Steps[0].Type)
}

func TestParseEmpty(t *testing.T) {
	rec, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, rec.Steps)
}

func TestValidateRejectsMalformed(t *testing.T) {
	for _, tc := range []struct {
		description string
		doc         string
	}{
		{"not JSON", `{`},
		{"steps not a list", `{"steps": {}}`},
		{"missing step type", `{"steps": [{"url": "https://example.test"}]}`},
		{"frame not ints", `{"steps": [{"type": "click", "frame": ["a"]}]}`},
		{"selectors not nested", `{"steps": [{"type": "click", "selectors": ["#a"]}]}`},
	} {
		t.Run(tc.description, func(t *testing.T) {
			assert.Error(t, Validate([]byte(tc.doc)))
		})
	}
}

func TestSchemaIsJSON(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, schemaID, doc["$id"])
}
