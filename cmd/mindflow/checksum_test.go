package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hashA = "abc123def456abc123def456abc123def456abc123def456abc123def456abcd"
	hashB = "fedcba98fedcba98fedcba98fedcba98fedcba98fedcba98fedcba98fedcba98"
)

func TestSha256File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.bin")
	data := []byte("mindflow test data")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := sha256File(path)
	require.NoError(t, err)

	h := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(h[:]), got)
}

func TestSha256File_NotFound(t *testing.T) {
	_, err := sha256File("/nonexistent/file")
	assert.Error(t, err)
}

func TestParseChecksumFile(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "two-space format",
			input: hashA + "  mermaid-ascii_Darwin_arm64.tar.gz\n" +
				hashB + "  mermaid-ascii_Linux_x86_64.tar.gz\n",
			want: map[string]string{
				"mermaid-ascii_Darwin_arm64.tar.gz": hashA,
				"mermaid-ascii_Linux_x86_64.tar.gz": hashB,
			},
		},
		{
			name:  "binary marker stripped",
			input: hashA + " *mermaid-ascii_Linux_arm64.tar.gz\n",
			want:  map[string]string{"mermaid-ascii_Linux_arm64.tar.gz": hashA},
		},
		{
			name:  "uppercase digest normalized",
			input: strings.ToUpper(hashB) + "  a.tar.gz\n",
			want:  map[string]string{"a.tar.gz": hashB},
		},
		{
			name:  "malformed lines skipped",
			input: "abc123\n\n" + strings.Repeat("z", 64) + "  bad.tar.gz\n" + hashA + "  good.tar.gz\n",
			want:  map[string]string{"good.tar.gz": hashA},
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "only short hashes",
			input:   "abc123  file.tar.gz\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseChecksumFile(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// stubGetter serves a fixed body or error for any URL.
type stubGetter struct {
	status int
	body   []byte
	err    error
	urls   []string
}

func (s *stubGetter) Get(url string) (*http.Response, error) {
	s.urls = append(s.urls, url)
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(strings.NewReader(string(s.body))),
	}, nil
}

func TestDownloadToTempFile(t *testing.T) {
	dir := t.TempDir()
	getter := &stubGetter{status: http.StatusOK, body: []byte("payload")}

	path, err := downloadToTempFile("https://example.test/a.tar.gz", dir, getter)
	require.NoError(t, err)
	defer os.Remove(path)

	assert.Equal(t, dir, filepath.Dir(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, []string{"https://example.test/a.tar.gz"}, getter.urls)
}

func TestDownloadToTempFile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		getter *stubGetter
		errMsg string
	}{
		{name: "not found", getter: &stubGetter{status: http.StatusNotFound}, errMsg: "returned 404"},
		{name: "transport", getter: &stubGetter{err: errors.New("dial tcp: refused")}, errMsg: "refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			_, err := downloadToTempFile("https://example.test/x", dir, tt.getter)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}
