package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFilePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
		errMsg  string
	}{
		{name: "valid relative path", path: "configs/config.json"},
		{name: "valid absolute path", path: "/etc/ticketflow/config.json"},
		{name: "dotted filename", path: "configs/config..json"},
		{name: "empty path", path: "", wantErr: true, errMsg: "path cannot be empty"},
		{name: "leading traversal", path: "../../../etc/passwd", wantErr: true, errMsg: "directory traversal"},
		{name: "embedded traversal", path: "configs/../../etc/passwd", wantErr: true, errMsg: "directory traversal"},
		{name: "nul byte", path: "config\x00.json", wantErr: true, errMsg: "NUL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilePath(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFilePathWithBase(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	require.NoError(t, os.MkdirAll(subDir, 0o755))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "absolute within base", path: filepath.Join(tmpDir, "a.png")},
		{name: "absolute in subdirectory", path: filepath.Join(subDir, "a.png")},
		{name: "relative within base", path: "1700000000000 - a.png"},
		{name: "outside base", path: "/etc/passwd", wantErr: true},
		{name: "escape through traversal", path: filepath.Join(tmpDir, "..", "..", "etc", "passwd"), wantErr: true},
		{name: "relative escape", path: "../x.png", wantErr: true},
		{name: "sibling with shared prefix", path: tmpDir + "-other/x.png", wantErr: true},
		{name: "empty", path: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilePathWithBase(tt.path, tmpDir)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "report.pdf", SanitizeFilename("report.pdf"))
	assert.Equal(t, ".._.._etc_passwd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "a_b.png", SanitizeFilename(`a\b.png`))
	assert.Equal(t, "ab.png", SanitizeFilename("a\nb.png"))
	assert.Equal(t, "file", SanitizeFilename(".."))
	assert.Equal(t, "file", SanitizeFilename("  "))
}
