package capture

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type closeBuffer struct {
	bytes.Buffer
}

func (c *closeBuffer) Close() error { return nil }

func TestWriter_RoundTripsSymbolsUncompressed(t *testing.T) {
	buf := &closeBuffer{}
	w, err := NewWriter(buf, false)
	require.NoError(t, err)

	symbols := []complex128{1 + 1i, -1 - 1i, 0.5 - 0.25i}
	for _, z := range symbols {
		require.NoError(t, w.WriteSymbol(z))
	}
	require.NoError(t, w.Close())

	r, err := OpenReader(io.NopCloser(bytes.NewReader(buf.Bytes())))
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Len(t, got, len(symbols)*8)
}

func TestWriter_RoundTripsSymbolsCompressed(t *testing.T) {
	buf := &closeBuffer{}
	w, err := NewWriter(buf, true)
	require.NoError(t, err)

	symbols := []complex128{1 + 1i, -1 - 1i, 0.5 - 0.25i}
	for _, z := range symbols {
		require.NoError(t, w.WriteSymbol(z))
	}
	require.NoError(t, w.Close())

	r, err := OpenReader(io.NopCloser(bytes.NewReader(buf.Bytes())))
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Len(t, got, len(symbols)*8)
}

func TestOpenReader_RejectsBadMagic(t *testing.T) {
	_, err := OpenReader(io.NopCloser(bytes.NewReader([]byte("not a capture file"))))
	require.Error(t, err)
}
