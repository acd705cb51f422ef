package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditkit/svc/sweeper"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "sweep")
	assert.Contains(t, names, "migrate")
	assert.Contains(t, names, "credits")
}

func TestSweepCommandInMemory(t *testing.T) {
	t.Setenv("STORAGE", "memory")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("EMAIL_DEV_DIR", t.TempDir())

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"sweep", "--at", time.Now().UTC().Format(time.RFC3339)})

	require.NoError(t, root.Execute())

	var report sweeper.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.False(t, report.Skipped)
	assert.Zero(t, report.Failed)
}

func TestSweepCommandRejectsBadTime(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"sweep", "--at", "yesterday"})

	assert.Error(t, root.Execute())
}

func TestUnknownStorage(t *testing.T) {
	t.Setenv("STORAGE", "sqlite")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("EMAIL_DEV_DIR", t.TempDir())

	_, err := newApp(t.Context())
	assert.ErrorIs(t, err, errUnknownStorage)
}
