package edoid_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edo-build/edo/pkg/edoid"
)

func digest(b string) string {
	return edoid.Blake3Hex([]byte(b))
}

func TestRoundTripNameOnly(t *testing.T) {
	id, err := edoid.New("build", "", "", "", digest("a"))
	require.NoError(t, err)

	parsed, err := edoid.Parse(id.String())
	require.NoError(t, err)
	assert.True(t, id.Equal(parsed))
}

func TestRoundTripFull(t *testing.T) {
	id, err := edoid.New("build", "myapp", "1.2.3", "amd64", digest("b"))
	require.NoError(t, err)

	s := id.String()
	assert.True(t, strings.HasPrefix(s, "myapp+build-1.2.3.amd64-"))

	parsed, err := edoid.Parse(s)
	require.NoError(t, err)
	assert.True(t, id.Equal(parsed))
}

func TestRoundTripArchNoVersion(t *testing.T) {
	id, err := edoid.New("build", "", "", "amd64", digest("c"))
	require.NoError(t, err)

	parsed, err := edoid.Parse(id.String())
	require.NoError(t, err)
	assert.True(t, id.Equal(parsed))
}

func TestRejectsReservedNameChars(t *testing.T) {
	for _, bad := range []string{"a@b", "a:b", "a.b", "a-b", "a/b"} {
		_, err := edoid.New(bad, "", "", "", digest("d"))
		assert.Error(t, err, "expected %q to be rejected", bad)
	}
}

func TestDigestAloneIsNotIdentity(t *testing.T) {
	d := digest("shared-empty-layerset")
	a, err := edoid.New("foo", "", "", "", d)
	require.NoError(t, err)
	b, err := edoid.New("bar", "", "", "", d)
	require.NoError(t, err)

	assert.False(t, a.Equal(b), "two different names sharing a digest must not be equal")
}

func TestNewRejectsBadDigest(t *testing.T) {
	_, err := edoid.New("foo", "", "", "", "not-hex")
	assert.Error(t, err)
}

func TestParseMalformed(t *testing.T) {
	_, err := edoid.Parse("not-a-valid-id")
	assert.Error(t, err)
}
