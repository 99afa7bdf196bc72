package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/config"
	"github.com/shopware/exthost/internal/mainthread"
)

func useConfig(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	cfg = config.Default(root)
	cfg.DataDir = filepath.Join(root, ".data")
	logger = zap.NewNop()
	return root
}

func TestSetupLoadsWorkspaceConfig(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, config.FileName), []byte("log:\n  level: debug\ncaches:\n  completions: 8\n"), 0o644))

	workspace, configPath = root, ""
	t.Cleanup(func() { workspace, configPath = ".", "" })

	require.NoError(t, setup())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Caches.Completions)
	assert.Equal(t, 8, extOptions().CompletionCacheSize)
	assert.Equal(t, root, cfg.Workspace)
}

func TestMainOptions(t *testing.T) {
	root := useConfig(t)
	cfg.Watcher.SkipDirs = []string{"vendor", "node_modules"}

	opts, err := mainOptions()
	require.NoError(t, err)
	assert.Equal(t, root, opts.Workspace)
	assert.True(t, opts.Watch)
	assert.True(t, opts.Watcher.SkipDirs["vendor"])
	assert.DirExists(t, opts.DataDir)
}

func TestInproc(t *testing.T) {
	root := useConfig(t)
	file := filepath.Join(root, "composer.json")
	require.NoError(t, os.WriteFile(file, []byte("{\n  \"require\": {\n    \"php\": \">=8.2\"\n  }\n}\n"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, runInproc(ctx, &out, []string{file}))

	var reports []foldingReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, mainthread.FileURI(file), reports[0].URI)
	assert.Equal(t, "json", reports[0].Language)
	assert.NotEmpty(t, reports[0].Ranges)
	assert.Equal(t, 1, reports[0].Ranges[0].Start)
}

func TestAstCommand(t *testing.T) {
	useConfig(t)
	file := filepath.Join(t.TempDir(), "test.php")
	require.NoError(t, os.WriteFile(file, []byte("<?php\necho 1;\n"), 0o644))

	var out bytes.Buffer
	astCmd.SetOut(&out)
	require.NoError(t, astCmd.RunE(astCmd, []string{file}))
	assert.Contains(t, out.String(), "program [0:0]")
	assert.Contains(t, out.String(), "echo_statement [1:0]")
}
