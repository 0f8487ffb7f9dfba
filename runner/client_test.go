package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTemplateDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.tf"), []byte(`resource "null_resource" "x" {}`), 0644))
	return dir
}

func TestClientCreateStack(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/stack/create", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(&Response{
			StackID:    "st-1",
			StackJobID: "sj-1",
			Status:     StatusInProgress,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("token-123"))
	handle, err := client.CreateStack(context.Background(), newTemplateDir(t), &StackOptions{
		Name:      "stack-demo",
		InputVars: map[string]interface{}{"region": "us-east-1"},
		Tags:      map[string]string{"env": "dev"},
		EnvVars:   map[string]string{"HTTP_PROXY": "proxy"},
	})
	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.Equal(t, "st-1", handle.StackID())
	assert.Equal(t, "sj-1", handle.StackJobID())

	assert.Equal(t, "Bearer token-123", gotAuth)
	assert.Equal(t, "stack-demo", gotBody["name"])
	assert.Equal(t, TenantID, gotBody["tenant_id"])
	assert.NotEmpty(t, gotBody["templateZipFile"])
	assert.Equal(t, map[string]interface{}{"env": "dev"}, gotBody["tags"])
	assert.Equal(t, map[string]interface{}{"HTTP_PROXY": "proxy"}, gotBody["env_vars"])
	parameters, ok := gotBody["parameters"].([]interface{})
	require.True(t, ok)
	require.Len(t, parameters, 1)
	assert.Equal(t, map[string]interface{}{"name": "region", "value": "us-east-1", "secured": "false"}, parameters[0])
	// defaulted on create
	assert.Equal(t, []interface{}{}, gotBody["cloud_providers"])
}

func TestClientCreateStackDefaultsName(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(&Response{StackID: "st-1", Status: StatusInProgress})
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("t"))
	_, err := client.CreateStack(context.Background(), newTemplateDir(t), nil)
	require.NoError(t, err)
	name, _ := gotBody["name"].(string)
	assert.Regexp(t, `^stack-[0-9a-z]{8}$`, name)
}

func TestClientMissingArguments(t *testing.T) {
	client := NewClient("http://localhost:1", StaticToken("t"))
	ctx := context.Background()

	_, err := client.UpdateStack(ctx, "", "templates/vpc", nil)
	require.ErrorIs(t, err, ErrMissingArgument)
	_, err = client.DeleteStack(ctx, "st-1", "", nil)
	require.ErrorIs(t, err, ErrMissingArgument)
	_, err = client.CancelStack(ctx, "")
	require.ErrorIs(t, err, ErrMissingArgument)
	_, err = client.RetrieveStack(ctx, "", "")
	require.ErrorIs(t, err, ErrMissingArgument)
}

func TestClientCallError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad token"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("t"))
	_, err := client.RetrieveStack(context.Background(), "st-1", "")
	require.Error(t, err)
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, http.StatusUnauthorized, callErr.StatusCode)
	assert.Contains(t, callErr.Body, "bad token")
}

func TestClientTemplateVariables(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/template/variables", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"template_input_params": []map[string]interface{}{
				{"name": "region", "type": "string", "required": "true"},
				{"name": "password", "type": "string", "secured": true},
			},
			"template_output_params": []map[string]interface{}{
				{"name": "vpc_id"},
			},
			"terraform_version": ">= 1.1.0",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("t"))
	schema, err := client.TemplateVariables(context.Background(), newTemplateDir(t))
	require.NoError(t, err)
	require.Len(t, schema.InputVars, 2)
	assert.Equal(t, ">= 1.1.0", schema.TerraformVersion)

	byName := schema.ConstraintsByName()
	require.Contains(t, byName, "region")
	assert.True(t, Truthy(byName["region"].Required))
	assert.True(t, Truthy(byName["password"].Secured))
}

func TestClientAvailable(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/live", r.URL.Path)
		hits++
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "UP"})
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("t"))
	assert.True(t, client.Available(context.Background()))
	assert.True(t, client.Available(context.Background()))
	assert.Equal(t, 1, hits, "availability is probed once")

	down := NewClient("http://127.0.0.1:1", StaticToken("t"))
	assert.False(t, down.Available(context.Background()))
}

func TestClientNormalizationErrorBeforeCall(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("t"))
	_, err := client.CreateStack(context.Background(), newTemplateDir(t), &StackOptions{
		InputVars:   map[string]interface{}{"tags": "{bad json"},
		Constraints: map[string]*TypeConstraint{"tags": {Name: "tags", Type: "map"}},
	})
	require.Error(t, err)
	var invalid *InvalidVariableError
	require.ErrorAs(t, err, &invalid)
	assert.Zero(t, hits, "no request is sent for invalid variables")
}
