package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules(t *testing.T) {
	r := DefaultRules()
	assert.True(t, r.HasSource("Emissions are reported PER the GHG Protocol."))
	assert.True(t, r.HasSource("as defined in ESRS E1"))
	assert.False(t, r.HasSource("Emissions fell 10%."))
	// "per " needs the trailing space.
	assert.False(t, r.HasSource("percent"))
	assert.True(t, r.IsAxiom("the ghg protocol scope 2 guidance 2015 says"))
	assert.False(t, r.IsAxiom("GHG Protocol Scope 3 Standard"))
}

func TestLoadRules_Extends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
axioms:
  - "1 kWh of grid electricity"
  - "1 liter of diesel"
citation_phrases:
  - "as reported by"
`), 0o644))

	r, err := LoadRules(path)
	require.NoError(t, err)
	assert.Len(t, r.Axioms, 3)
	assert.True(t, r.IsAxiom("1 kWh of grid electricity emits 0.4 kg"))
	assert.True(t, r.IsAxiom("1 liter of diesel"))
	assert.True(t, r.HasSource("As reported by the auditor"))
	assert.True(t, r.HasSource("according to the auditor"))
}

func TestLoadRules_Errors(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("axioms: [unclosed"), 0o644))
	_, err = LoadRules(path)
	assert.Error(t, err)

	r, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), r)
}

func TestParseCredibility(t *testing.T) {
	c, err := ParseCredibility("cross_verified")
	require.NoError(t, err)
	assert.Equal(t, CrossVerified, c)
	_, err = ParseCredibility("crossverified")
	assert.Error(t, err)
}
