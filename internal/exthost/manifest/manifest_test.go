package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlManifest = `
extensions:
  - id: pub.notes
  - id: pub.auth
    handler: webhook
    url: https://hooks.example.com/auth
    timeout: 2s
    retries: 3
    rate_limit: 5
    headers:
      X-Token: abc
`

const tomlManifest = `
[[extensions]]
id = "pub.notes"
handler = "log"

[[extensions]]
id = "pub.auth"
handler = "webhook"
url = "https://hooks.example.com/auth"
timeout = "2s"
retries = 3
rate_limit = 5.0

[extensions.headers]
X-Token = "abc"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "yaml", file: "extensions.yaml", content: yamlManifest},
		{name: "yml", file: "extensions.yml", content: yamlManifest},
		{name: "toml", file: "extensions.toml", content: tomlManifest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Load(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			require.Len(t, m.Extensions, 2)

			notes := m.Extensions[0]
			assert.Equal(t, "pub.notes", notes.ID)
			assert.Equal(t, HandlerLog, notes.Handler)

			auth := m.Extensions[1]
			assert.Equal(t, "pub.auth", auth.ID)
			assert.Equal(t, HandlerWebhook, auth.Handler)
			assert.Equal(t, "https://hooks.example.com/auth", auth.URL)
			assert.Equal(t, 2*time.Second, auth.TimeoutDuration())
			assert.Equal(t, 3, auth.Retries)
			assert.Equal(t, 5.0, auth.Rate)
			assert.Equal(t, map[string]string{"X-Token": "abc"}, auth.Headers)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeFile(t, "extensions.json", "{}"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "bad.yaml", "extensions: [\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(writeFile(t, "bad.toml", "extensions = 3"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("extensions:\n  - id: a\n    colour: red\n"), FormatYAML)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Parse([]byte("[[extensions]]\nid = \"a\"\ncolour = \"red\"\n"), FormatTOML)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Parse(nil, Format("ini"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		ext     []Extension
		wantErr string
	}{
		{name: "empty manifest", ext: nil},
		{name: "missing id", ext: []Extension{{ID: "  "}}, wantErr: "id is required"},
		{name: "duplicate id ignoring case", ext: []Extension{{ID: "pub.ext"}, {ID: "Pub.Ext"}}, wantErr: "duplicates extensions[0]"},
		{name: "webhook without url", ext: []Extension{{ID: "a", Handler: HandlerWebhook}}, wantErr: "url is required"},
		{name: "webhook relative url", ext: []Extension{{ID: "a", Handler: HandlerWebhook, URL: "/hook"}}, wantErr: "absolute http(s)"},
		{name: "webhook wrong scheme", ext: []Extension{{ID: "a", Handler: HandlerWebhook, URL: "ftp://x/y"}}, wantErr: "absolute http(s)"},
		{name: "unknown handler", ext: []Extension{{ID: "a", Handler: "shell"}}, wantErr: `unknown handler "shell"`},
		{name: "bad timeout", ext: []Extension{{ID: "a", Timeout: "later"}}, wantErr: "positive duration"},
		{name: "negative retries", ext: []Extension{{ID: "a", Retries: -1}}, wantErr: "retries"},
		{name: "negative rate", ext: []Extension{{ID: "a", Rate: -1}}, wantErr: "rate_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Manifest{Extensions: tt.ext}
			err := m.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	m := &Manifest{Extensions: []Extension{{}, {ID: "b", Handler: "x"}}}
	err := m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extensions[0]: id is required")
	assert.Contains(t, err.Error(), "extensions[1]: unknown handler")
}
