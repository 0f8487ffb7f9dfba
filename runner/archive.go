package runner

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
)

// EncodeTemplate zips the template directory and returns the archive
// base64-encoded, the form the runner accepts as templateZipFile. The walk is
// deterministic: regular files only, archived under their root-relative
// paths, in lexical order.
func EncodeTemplate(ctx context.Context, fs afs.Service, templatePath string) (string, error) {
	templatePath = strings.TrimSuffix(templatePath, "/")

	object, err := fs.Object(ctx, templatePath)
	if err != nil || !object.IsDir() {
		return "", fmt.Errorf("template path %q does not exist", templatePath)
	}

	objects, err := fs.List(ctx, templatePath, option.NewRecursive(true))
	if err != nil {
		return "", fmt.Errorf("failed to list template %q: %w", templatePath, err)
	}

	basePath := url.Path(object.URL())
	sources := map[string]string{}
	var relPaths []string
	for _, candidate := range objects {
		if candidate.IsDir() || !candidate.Mode().IsRegular() {
			continue
		}
		rel := strings.TrimPrefix(url.Path(candidate.URL()), basePath)
		rel = strings.TrimPrefix(rel, "/")
		if rel == "" {
			continue
		}
		sources[rel] = candidate.URL()
		relPaths = append(relPaths, rel)
	}
	sort.Strings(relPaths)

	buffer := new(bytes.Buffer)
	archive := zip.NewWriter(buffer)
	for _, rel := range relPaths {
		data, err := fs.DownloadWithURL(ctx, sources[rel])
		if err != nil {
			return "", fmt.Errorf("failed to read template file %q: %w", rel, err)
		}
		writer, err := archive.Create(rel)
		if err != nil {
			return "", err
		}
		if _, err = writer.Write(data); err != nil {
			return "", err
		}
	}
	if err := archive.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buffer.Bytes()), nil
}
