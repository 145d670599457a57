package archivestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimomut/tfm-sub008/internal/errs"
)

func TestDetectFormatByExtension(t *testing.T) {
	cases := []struct {
		name string
		want Format
	}{
		{"a.zip", FormatZip},
		{"a.tar", FormatTar},
		{"a.tar.gz", FormatTarGzip},
		{"a.tgz", FormatTarGzip},
		{"a.tar.bz2", FormatTarBzip2},
		{"a.tbz2", FormatTarBzip2},
		{"a.tar.xz", FormatTarXz},
		{"a.txz", FormatTarXz},
		{"a.gz", FormatGzip},
		{"a.bz2", FormatBzip2},
		{"a.xz", FormatXz},
		{"A.ZIP", FormatZip},
	}
	for _, c := range cases {
		got, err := DetectFormat(c.name)
		require.NoError(t, err, c.name)
		assert.Equal(t, c.want, got, c.name)
	}
}

func TestDetectFormatUnknownExtensionFails(t *testing.T) {
	_, err := DetectFormat("a.rar")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.UnsupportedOperation))
}

func TestIsTarBased(t *testing.T) {
	assert.True(t, FormatTar.IsTarBased())
	assert.True(t, FormatTarGzip.IsTarBased())
	assert.True(t, FormatTarBzip2.IsTarBased())
	assert.True(t, FormatTarXz.IsTarBased())
	assert.False(t, FormatZip.IsTarBased())
	assert.False(t, FormatGzip.IsTarBased())
}
