package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/controlplane/internal/apperr"
)

func TestSubstitute_EnvWithDefault(t *testing.T) {
	env := EnvMap{"FOO": "bar"}
	in := Map(map[string]Value{
		"u": String("${FOO}/x"),
		"v": String("${MISSING:-zed}"),
		"w": String("${env:FOO}"),
	})

	out, err := Substitute(in, env)
	require.NoError(t, err)

	assert.Equal(t, "bar/x", out.Map["u"].Str)
	assert.Equal(t, "zed", out.Map["v"].Str)
	assert.Equal(t, "bar", out.Map["w"].Str)
}

func TestSubstitute_MissingNoDefault(t *testing.T) {
	env := EnvMap{"FOO": "bar"}
	in := String("${MISSING}")

	_, err := Substitute(in, env)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeEnvVarNotFound))
}

func TestSubstitute_MissingEnvPrefixNoDefault(t *testing.T) {
	_, err := Substitute(String("${env:MISSING}"), EnvMap{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeEnvVarNotFound))
}

func TestSubstitute_Idempotent(t *testing.T) {
	env := EnvMap{"FOO": "bar"}
	once, err := Substitute(String("${FOO}/x"), env)
	require.NoError(t, err)

	twice, err := Substitute(once, env)
	require.NoError(t, err)

	assert.Equal(t, once.Str, twice.Str)
}

func TestSubstitute_ListsAndMapsWalkElementwise(t *testing.T) {
	env := EnvMap{"FOO": "bar"}
	in := List([]Value{
		String("${FOO}"),
		Int(42),
		Bool(true),
		Map(map[string]Value{"nested": String("${FOO}-nested")}),
	})

	out, err := Substitute(in, env)
	require.NoError(t, err)

	assert.Equal(t, "bar", out.List[0].Str)
	assert.Equal(t, int64(42), out.List[1].Int)
	assert.Equal(t, true, out.List[2].Bool)
	assert.Equal(t, "bar-nested", out.List[3].Map["nested"].Str)
}

func TestSubstitute_NonStringScalarsPassThrough(t *testing.T) {
	in := Float(3.14)
	out, err := Substitute(in, EnvMap{})
	require.NoError(t, err)
	assert.Equal(t, 3.14, out.Float)
}
