package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hybrid_copilot/internal/config"
	"hybrid_copilot/internal/nodes"
	"hybrid_copilot/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	docs := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "product_policy.md"),
		[]byte("# Returns\n\nBeverages can be returned within 14 days when unopened."), 0o644))

	env := &config.Config{
		LLMConfig: config.LLMConfig{Provider: "ollama", Model: "phi3.5"},
		StorageConfig: config.StorageConfig{
			DatabasePath: filepath.Join(dir, "northwind.sqlite"),
			DocsDir:      docs,
			RunTTL:       time.Hour,
		},
	}

	a, err := New(ctx, env, config.DefaultYAMLConfig())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	res := a.Executor.Execute(ctx, `CREATE TABLE Products (ProductID INTEGER, ProductName TEXT)`)
	require.False(t, res.Failed(), res.Error)
	return a
}

func TestNewIndexesDocuments(t *testing.T) {
	a := newTestApp(t)

	assert.Equal(t, 1, a.Index.Len())
	passages, err := a.Index.Retrieve(context.Background(), "return beverages", 4)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "product_policy::chunk1", passages[0].ID)
}

func TestToolbox(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	box, err := a.Toolbox(ctx)
	require.NoError(t, err)

	out, err := box.Run(ctx, nodes.ToolSchema, `{}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Table: Products")
}

func TestAgent(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	agent, err := a.Agent(ctx, 3)
	require.NoError(t, err)
	assert.NotNil(t, agent)

	_, err = a.Agent(ctx, 0)
	assert.Error(t, err)
}

func TestPipelineCompiles(t *testing.T) {
	a := newTestApp(t)

	processor, err := a.Pipeline(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, processor)
}

func TestPipelineRejectsUnknownProvider(t *testing.T) {
	a := newTestApp(t)
	a.Env.LLMConfig.Provider = "carrier-pigeon"

	_, err := a.Pipeline(context.Background())
	assert.Error(t, err)
}

func TestStoreDefaultsToMemory(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	store, err := a.Store(ctx)
	require.NoError(t, err)
	_, ok := store.(*storage.MemoryRunStore)
	assert.True(t, ok)

	again, err := a.Store(ctx)
	require.NoError(t, err)
	assert.Same(t, store, again)
}

func TestNewFailsOnBadDatabasePath(t *testing.T) {
	env := &config.Config{StorageConfig: config.StorageConfig{
		DatabasePath: filepath.Join(t.TempDir(), "missing", "dir", "db.sqlite"),
		DocsDir:      t.TempDir(),
	}}
	_, err := New(context.Background(), env, config.DefaultYAMLConfig())
	assert.Error(t, err)
}
