package recorder

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderWriteThenReadFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	rec := New(f, 8000, 1)

	samples := make([]int16, 400)
	for i := range samples {
		samples[i] = int16(i - 200)
	}
	require.NoError(t, rec.Write(samples))
	require.NoError(t, rec.Close())

	in, err := os.Open(path)
	require.NoError(t, err)
	defer in.Close()

	got, sampleRate, channels, err := ReadFile(in)
	require.NoError(t, err)
	assert.Equal(t, 8000, sampleRate)
	assert.Equal(t, 1, channels)
	require.Len(t, got, len(samples))
	for i := range samples {
		assert.Equal(t, samples[i], got[i])
	}
}

func TestReadFileRejectsNonSeekableInput(t *testing.T) {
	_, _, _, err := ReadFile(bytes.NewBufferString("not a wav file and not seekable"))
	assert.Error(t, err)
}
