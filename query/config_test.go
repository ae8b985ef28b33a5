package query

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonConfig = `{
  "select": {
    "nodes": ["name", {"building": "levels"}],
    "ways_line": ["name"],
    "ways_poly": ["name", "building"]
  },
  "where": {
    "nodes": [
      {"building": ["yes"], "op": "or"},
      {"amenity": ["school", "hospital"], "op": "or"}
    ],
    "ways_line": [{"highway": null, "op": "or"}],
    "ways_poly": [{"building": ["not null"], "op": "and"}]
  },
  "tables": ["nodes", "ways_poly"],
  "centroid": true
}`

const yamlConfig = `
select:
  nodes:
    - name
    - building: levels
  ways_line:
    - name
  ways_poly:
    - name
    - building
where:
  nodes:
    - building: ["yes"]
      op: or
    - amenity: [school, hospital]
      op: or
  ways_line:
    - highway:
      op: or
  ways_poly:
    - building: ["not null"]
      op: and
tables:
  - nodes
  - ways_poly
centroid: true
`

func checkConfig(t *testing.T, cfg *Config) {
	t.Helper()

	require.Len(t, cfg.Select[Nodes], 2)
	assert.Equal(t, SelectEntry{Key: "name"}, cfg.Select[Nodes][0])
	assert.Equal(t, SelectEntry{Key: "building", Hint: "levels"}, cfg.Select[Nodes][1])
	assert.Equal(t, []SelectEntry{{Key: "name"}}, cfg.Select[WaysLine])
	require.Len(t, cfg.Select[WaysPoly], 2)

	require.Len(t, cfg.Where[Nodes], 2)
	assert.Equal(t, WhereClause{Key: "building", Op: "or", Values: []string{"yes"}}, cfg.Where[Nodes][0])
	assert.Equal(t, WhereClause{Key: "amenity", Op: "or", Values: []string{"school", "hospital"}}, cfg.Where[Nodes][1])

	require.Len(t, cfg.Where[WaysLine], 1)
	assert.True(t, cfg.Where[WaysLine][0].NotNull())

	require.Len(t, cfg.Where[WaysPoly], 1)
	assert.Equal(t, WhereClause{Key: "building", Op: "and", Values: []string{"not null"}}, cfg.Where[WaysPoly][0])
	assert.True(t, cfg.Where[WaysPoly][0].NotNull())

	assert.Equal(t, []string{"nodes", "ways_poly"}, cfg.Tables)
	assert.True(t, cfg.Centroid)
}

func TestParseJSON(t *testing.T) {
	cfg, err := ParseJSON(strings.NewReader(jsonConfig))
	require.NoError(t, err)
	checkConfig(t, cfg)
}

func TestParseYAML(t *testing.T) {
	cfg, err := ParseYAML(strings.NewReader(yamlConfig))
	require.NoError(t, err)
	checkConfig(t, cfg)
}

func TestParseYAMLBoolValue(t *testing.T) {
	// yaml turns a bare yes into a bool; the clause still records a string
	cfg, err := ParseYAML(strings.NewReader("where:\n  nodes:\n    - building: [yes]\n      op: or\n"))
	require.NoError(t, err)
	require.Len(t, cfg.Where[Nodes], 1)
	assert.Equal(t, []string{"true"}, cfg.Where[Nodes][0].Values)
}

func TestParseJSONNestedValues(t *testing.T) {
	cfg, err := ParseJSON(strings.NewReader(`{
	  "where": {"nodes": [{"healthcare": [["clinic", "doctors"]], "op": "or"}]}
	}`))
	require.NoError(t, err)
	require.Len(t, cfg.Where[Nodes], 1)
	assert.Equal(t, []string{"clinic", "doctors"}, cfg.Where[Nodes][0].AnyOf)
	assert.Empty(t, cfg.Where[Nodes][0].Values)
	assert.False(t, cfg.Where[Nodes][0].NotNull())
}

func TestParseJSONInvalid(t *testing.T) {
	_, err := ParseJSON(strings.NewReader(`{"where": {"nodes": [{"op": "or"}]}}`))
	assert.Error(t, err)

	_, err = ParseJSON(strings.NewReader(`{"select": {"nodes": "name"}}`))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	jsonFile := filepath.Join(dir, "query.json")
	require.NoError(t, os.WriteFile(jsonFile, []byte(jsonConfig), 0644))
	cfg, err := LoadConfig(jsonFile)
	require.NoError(t, err)
	checkConfig(t, cfg)

	yamlFile := filepath.Join(dir, "query.yaml")
	require.NoError(t, os.WriteFile(yamlFile, []byte(yamlConfig), 0644))
	cfg, err = LoadConfig(yamlFile)
	require.NoError(t, err)
	checkConfig(t, cfg)

	tomlFile := filepath.Join(dir, "query.toml")
	require.NoError(t, os.WriteFile(tomlFile, []byte(""), 0644))
	_, err = LoadConfig(tomlFile)
	assert.ErrorContains(t, err, "unsupported config format")

	_, err = LoadConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
