package msgcat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedCatalogRenders(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	out, err := c.Render("errors.NOT_YOUR_TURN", nil)
	require.NoError(t, err)
	assert.Equal(t, "It is not your turn.", out)

	out, err = c.Render("errors.INVALID_BET", map[string]string{"Reason": "AMOUNT_TOO_LOW"})
	require.NoError(t, err)
	assert.Contains(t, out, "AMOUNT_TOO_LOW")
	assert.True(t, c.Has("bet.WRONG_DENOM"))
}

func TestMissingKeyAndMissingField(t *testing.T) {
	c := MustDefault()

	_, err := c.Render("errors.NOPE", nil)
	assert.Error(t, err)

	_, err = c.Render("api.bad_request", map[string]string{})
	assert.Error(t, err)

	assert.Equal(t, "fallback", c.RenderOr("errors.NOPE", nil, "fallback"))
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("errors:\n  NOT_YOUR_TURN: \"wait\"\n"), 0o600))

	c, err := New(dir)
	require.NoError(t, err)
	out, err := c.Render("errors.NOT_YOUR_TURN", nil)
	require.NoError(t, err)
	assert.Equal(t, "wait", out)
}

func TestOverrideDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	body := []byte("api:\n  internal: \"x\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), body, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), body, 0o600))

	_, err := New(dir)
	assert.ErrorContains(t, err, "duplicate override key")
}

func TestRejectsNonStringLeaves(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("errors:\n  X: 3\n"), 0o600))
	_, err := New(dir)
	assert.Error(t, err)
}
