package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/testclient/packages/mock"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// WatchDebounceDelay is how long to wait after a fixture change before reloading
const WatchDebounceDelay = 300 * time.Millisecond

var (
	mockPortFlag    int
	mockDelayFlag   string
	mockVerboseFlag bool
	mockWatchFlag   bool
)

var mockCmd = &cobra.Command{
	Use:   "mock <file|directory>...",
	Short: "Serve fixture files as an HTTP application",
	Long: `Start an HTTP server that answers from YAML fixture files.

The same fixtures back "request --kernel", so a fixture set can be
exercised in-process or over the network.

The mock server:
- Matches routes by method and path, with {{name}} path parameters
- Renders {{name}}, {{query.x}}, {{form.x}}, {{header.X}}, {{cookie.x}} and {{$uuid()}} style functions
- Echoes requests back as JSON for routes with echo: true
- Can add artificial delays to simulate network latency
- Reloads fixtures when they change with --watch

Examples:
  testclient mock fixtures.yaml
  testclient mock fixtures.yaml --port 3000
  testclient mock fixtures.yaml --port 3000 --delay 100ms
  testclient mock ./fixtures/ --verbose --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: mockCommand,
}

func init() {
	mockCmd.Flags().IntVarP(&mockPortFlag, "port", "p", 3000, "Port to run the mock server on")
	mockCmd.Flags().StringVarP(&mockDelayFlag, "delay", "d", "0", "Delay to add to all responses (e.g., 100ms, 1s)")
	mockCmd.Flags().BoolVarP(&mockVerboseFlag, "verbose", "v", false, "Enable verbose logging")
	mockCmd.Flags().BoolVarP(&mockWatchFlag, "watch", "w", false, "Reload fixtures when they change")
}

func mockCommand(cmd *cobra.Command, args []string) error {
	// Parse delay
	var delay time.Duration
	if mockDelayFlag != "0" {
		var err error
		delay, err = time.ParseDuration(mockDelayFlag)
		if err != nil {
			return withExitCode(ExitUsageError, fmt.Errorf("invalid delay value %q: %w", mockDelayFlag, err))
		}
	}

	files, err := collectFixtureFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no .yaml or .yml fixture files found"))
	}

	logger := newLogger(os.Stderr, mockVerboseFlag, false)

	server := mock.NewServer(
		mock.WithPort(mockPortFlag),
		mock.WithDelay(delay),
		mock.WithVerbose(mockVerboseFlag),
		mock.WithLogger(logger),
	)

	if err := server.LoadFiles(files); err != nil {
		return withExitCode(ExitParseError, fmt.Errorf("failed to load files: %w", err))
	}

	routes := server.Routes()
	if len(routes) == 0 {
		return withExitCode(ExitConfigError, fmt.Errorf("no routes found in the provided files"))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d routes from %d files\n", len(routes), len(files))

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if mockWatchFlag {
		go func() {
			if err := watchFixtures(ctx, server, files, logger); err != nil {
				logger.Error().Err(err).Msg("watcher stopped")
			}
		}()
	}

	return server.StartWithContext(ctx)
}

// collectFixtureFiles expands directories into the YAML files they contain.
func collectFixtureFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		err = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && isFixtureFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}

func isFixtureFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// watchFixtures reloads server whenever one of files is written, until ctx is done.
func watchFixtures(ctx context.Context, server *mock.Server, files []string, logger zerolog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace files, so watch the directories.
	watched := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	logger.Info().Int("files", len(files)).Msg("watching fixtures for changes")

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logger.Debug().Str("file", event.Name).Msg("fixture changed")

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(WatchDebounceDelay, func() {
				if err := server.Reload(); err != nil {
					logger.Error().Err(err).Msg("failed to reload fixtures")
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("watcher error")
		}
	}
}
