package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteEntity(12345))
	require.NoError(t, w.WriteEntity(0))
	require.NoError(t, w.Flush())

	r := NewReader(&buf)
	v, err := r.ReadEntity()
	require.NoError(t, err)
	assert.Equal(t, int64(12345), v)

	v, err = r.ReadEntity()
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	_, err = r.ReadEntity()
	assert.True(t, IsEOF(err))
}

func TestBlockOrSingletonSignExtension(t *testing.T) {
	cases := []int64{0, 1, -1, 1000000, -1000000, SingletonSentinel}
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, c := range cases {
		require.NoError(t, w.WriteBlockOrSingleton(c))
	}
	require.NoError(t, w.Flush())

	r := NewReader(&buf)
	for _, want := range cases {
		got, err := r.ReadBlockOrSingleton()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestKTypeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteKType(0))
	require.NoError(t, w.WriteKType(65535))
	require.NoError(t, w.Flush())

	r := NewReader(&buf)
	v, err := r.ReadKType()
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	v, err = r.ReadKType()
	require.NoError(t, err)
	assert.Equal(t, 65535, v)
}

func TestReadTruncatedRecordIsFileFormatError(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x01, 0x02})
	r := NewReader(buf)
	_, err := r.ReadEntity()
	assert.Error(t, err)
	assert.False(t, IsEOF(err))
}
