package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/testclient/packages/mock"
)

func TestCollectFixtureFiles(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(nested, 0755))

	for _, name := range []string{"a.yaml", "b.YML", "notes.txt", "nested/c.yml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("routes: []"), 0644))
	}
	single := writeFile(t, "single.json", "{}")

	files, err := collectFixtureFiles([]string{dir, single})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.yaml"),
		filepath.Join(dir, "b.YML"),
		filepath.Join(nested, "c.yml"),
		single,
	}, files)

	_, err = collectFixtureFiles([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestWatchFixtures_Reloads(t *testing.T) {
	path := writeFile(t, "fixtures.yaml", `
routes:
  - path: /one
`)

	server := mock.NewServer()
	require.NoError(t, server.LoadFile(path))
	require.Len(t, server.Routes(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- watchFixtures(ctx, server, []string{path}, zerolog.Nop())
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`
routes:
  - path: /one
  - path: /two
`), 0644))

	assert.Eventually(t, func() bool {
		return len(server.Routes()) == 2
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestVersionCommand(t *testing.T) {
	version, buildTime = "1.2.3", "today"
	defer func() { version, buildTime = "dev", "unknown" }()

	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	assert.Equal(t, "testclient version 1.2.3\nBuilt: today\n", out.String())
}
