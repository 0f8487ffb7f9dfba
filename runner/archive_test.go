package runner

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
)

func TestEncodeTemplate(t *testing.T) {
	ctx := context.Background()
	templateDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(templateDir, "main.tf"), []byte(`resource "null_resource" "x" {}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(templateDir, "variables.tf"), []byte(`variable "region" {}`), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(templateDir, "modules", "vpc"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(templateDir, "modules", "vpc", "main.tf"), []byte("module"), 0644))

	encoded, err := EncodeTemplate(ctx, afs.New(), templateDir)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	var names []string
	contents := map[string]string{}
	for _, f := range reader.File {
		names = append(names, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		contents[f.Name] = string(data)
	}
	assert.Equal(t, []string{"main.tf", "modules/vpc/main.tf", "variables.tf"}, names)
	assert.Equal(t, "module", contents["modules/vpc/main.tf"])
}

func TestEncodeTemplateMissingPath(t *testing.T) {
	_, err := EncodeTemplate(context.Background(), afs.New(), filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestEncodeTemplateFileNotDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.tf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	_, err := EncodeTemplate(context.Background(), afs.New(), path)
	require.Error(t, err)
}
