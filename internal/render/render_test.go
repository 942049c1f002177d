package render

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBinary drops an executable stub that copies a fixed payload to its
// output path, standing in for wkhtmltopdf.
func fakeBinary(t *testing.T, payload string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub not portable to windows")
	}

	path := filepath.Join(t.TempDir(), "wkhtmltopdf")
	script := "#!/bin/sh\n" +
		"# last two arguments are input and output paths\n" +
		"for out in \"$@\"; do :; done\n" +
		"printf '%s' '" + payload + "' > \"$out\"\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestNewWKHTMLToPDFConverter(t *testing.T) {
	t.Run("explicit path must exist", func(t *testing.T) {
		_, err := NewWKHTMLToPDFConverter(filepath.Join(t.TempDir(), "absent"), nil)
		assert.ErrorIs(t, err, ErrRendererUnavailable)
	})

	t.Run("explicit path wins", func(t *testing.T) {
		bin := fakeBinary(t, "%PDF-1.4 stub")
		c, err := NewWKHTMLToPDFConverter(bin, nil)
		require.NoError(t, err)
		assert.Equal(t, bin, c.Command)
	})
}

func TestConvert(t *testing.T) {
	t.Run("writes converter output", func(t *testing.T) {
		bin := fakeBinary(t, "%PDF-1.4 stub")
		c, err := NewWKHTMLToPDFConverter(bin, nil)
		require.NoError(t, err)

		var buf bytes.Buffer
		err = c.Convert(context.Background(), []byte("<html><body>ok</body></html>"), &buf)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4 stub", buf.String())
	})

	t.Run("propagates command failure with stderr", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("shell stub not portable to windows")
		}
		path := filepath.Join(t.TempDir(), "wkhtmltopdf")
		script := "#!/bin/sh\necho 'Error: blocked access' >&2\nexit 1\n"
		require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

		c, err := NewWKHTMLToPDFConverter(path, nil)
		require.NoError(t, err)

		err = c.Convert(context.Background(), []byte("<html></html>"), &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "blocked access")
	})
}
