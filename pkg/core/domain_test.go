package core_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/casebook/pkg/core"
)

func TestID_ParseAndText(t *testing.T) {
	id := core.NewID()
	parsed, err := core.ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = core.ParseID("not-an-id")
	assert.Error(t, err)
	assert.True(t, core.ID{}.IsZero())
}

func TestRecord_EncodesIDAsText(t *testing.T) {
	r := core.NewRecord()
	r.Title = "Broken window"

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"`+r.ID.String()+`"`)

	out, err := yaml.Marshal(r)
	require.NoError(t, err)
	var back core.Record
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.True(t, r.Equal(back))
}

func TestRecord_EqualComparesInstants(t *testing.T) {
	r := core.NewRecord()
	other := r
	other.OccurredAt = r.OccurredAt.In(time.FixedZone("X", 3600))
	assert.True(t, r.Equal(other))

	other.Suspect = "Mallory"
	assert.False(t, r.Equal(other))
}
