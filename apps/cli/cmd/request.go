package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/testclient/packages/browser"
	"github.com/abdul-hamid-achik/testclient/packages/client"
	"github.com/abdul-hamid-achik/testclient/packages/core/config"
	"github.com/abdul-hamid-achik/testclient/packages/mock"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	headerFlags    []string
	dataFlag       string
	kernelFlags    []string
	includeFlag    bool
	jsonPathFlag   string
	schemaFlag     string
	configFlag     string
	baseURLFlag    string
	timeoutFlag    string
	insecureFlag   bool
	requestVerbose bool
	requestNoColor bool
)

var requestCmd = &cobra.Command{
	Use:   "request <METHOD> <URL>",
	Short: "Send a single request and print the response",
	Long: `Send a single request and print the response.

By default the request goes over HTTP. With --kernel the request is handed
in-process to a mock application built from the given fixture files, through
a simulated browser that keeps cookies between requests.

Headers are given as "Name: value". A body starting with @ is read from a file.

Examples:
  testclient request GET https://api.example.com/users
  testclient request POST https://api.example.com/users -H "Content-Type: application/json" -d '{"name":"ada"}'
  testclient request POST /login --kernel fixtures.yaml -H "Content-Type: application/x-www-form-urlencoded" -d "username=ada"
  testclient request GET /users/1 --kernel fixtures.yaml --json-path user.name
  testclient request GET https://api.example.com/users/1 --schema user.schema.json`,
	Args: cobra.ExactArgs(2),
	RunE: requestCommand,
}

func init() {
	requestCmd.Flags().StringArrayVarP(&headerFlags, "header", "H", nil, "Request header as \"Name: value\" (repeatable)")
	requestCmd.Flags().StringVarP(&dataFlag, "data", "d", "", "Request body, or @file to read it from a file")
	requestCmd.Flags().StringSliceVar(&kernelFlags, "kernel", nil, "Send the request in-process to a mock application built from these fixture files")
	requestCmd.Flags().BoolVarP(&includeFlag, "include", "i", false, "Print the status line and response headers")
	requestCmd.Flags().StringVar(&jsonPathFlag, "json-path", "", "Print only the value at this JSON path (fails when missing)")
	requestCmd.Flags().StringVar(&schemaFlag, "schema", "", "Validate the response body against this JSON schema file")
	requestCmd.Flags().StringVarP(&configFlag, "config", "c", getEnvString("TESTCLIENT_CONFIG", ""), "Config file path")
	requestCmd.Flags().StringVar(&baseURLFlag, "base-url", "", "Base URL for relative request URLs")
	requestCmd.Flags().StringVar(&timeoutFlag, "timeout", "", "Request timeout (e.g., 500ms, 10s)")
	requestCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", false, "Skip TLS certificate validation")
	requestCmd.Flags().BoolVarP(&requestVerbose, "verbose", "v", getEnvBool("TESTCLIENT_VERBOSE", false), "Enable debug logging")
	requestCmd.Flags().BoolVar(&requestNoColor, "no-color", getEnvBool("TESTCLIENT_NO_COLOR", false), "Disable colored output")
}

// requestOptions holds everything runRequest needs.
type requestOptions struct {
	method   string
	uri      string
	headers  []string
	body     *string
	include  bool
	jsonPath string
	schema   string
	config   *config.Config
}

func requestCommand(cmd *cobra.Command, args []string) error {
	base, err := config.LoadConfig(configFlag)
	if err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("failed to load config: %w", err))
	}

	overrides := &config.Config{
		BaseURL:  baseURLFlag,
		Fixtures: kernelFlags,
	}
	if len(kernelFlags) > 0 {
		overrides.Mode = config.ModeKernel
	}
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return withExitCode(ExitUsageError, fmt.Errorf("invalid timeout value %q: %w", timeoutFlag, err))
		}
		overrides.Timeout = int(d.Milliseconds())
	}
	if insecureFlag {
		overrides.ValidateSSL = config.BoolPtr(false)
	}
	if cmd.Flags().Changed("verbose") {
		overrides.Verbose = config.BoolPtr(requestVerbose)
	}
	if cmd.Flags().Changed("no-color") {
		overrides.NoColor = config.BoolPtr(requestNoColor)
	}
	cfg := base.Merge(overrides)

	opts := requestOptions{
		method:   strings.ToUpper(args[0]),
		uri:      args[1],
		headers:  headerFlags,
		include:  includeFlag,
		jsonPath: jsonPathFlag,
		schema:   schemaFlag,
		config:   cfg,
	}
	if cmd.Flags().Changed("data") {
		body, err := readData(dataFlag)
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		opts.body = &body
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(os.Stderr, cfg.GetVerbose(), cfg.GetNoColor())
	return runRequest(ctx, cmd.OutOrStdout(), logger, opts)
}

func runRequest(ctx context.Context, w io.Writer, logger zerolog.Logger, opts requestOptions) error {
	cfg := opts.config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return withExitCode(ExitConfigError, err)
	}
	if cfg.GetNoColor() {
		color.NoColor = true
	}

	headers, err := parseHeaders(cfg.Headers, opts.headers)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	var schema string
	if opts.schema != "" {
		data, err := os.ReadFile(opts.schema)
		if err != nil {
			return withExitCode(ExitUsageError, fmt.Errorf("failed to read schema: %w", err))
		}
		schema = string(data)
	}

	c, err := buildClient(cfg, logger)
	if err != nil {
		return err
	}

	uri := opts.uri
	if cfg.Mode == config.ModeHTTP {
		if uri, err = resolveURL(cfg.BaseURL, uri); err != nil {
			return withExitCode(ExitUsageError, err)
		}
	}

	resp, err := c.MakeRequest(ctx, opts.method, uri, headers, opts.body)
	if err != nil {
		return withExitCode(ExitNetworkError, err)
	}
	logger.Debug().
		Str("method", opts.method).
		Str("url", uri).
		Int("status", resp.StatusCode).
		Int64("duration_ms", resp.DurationMs()).
		Msg("response received")

	if opts.include {
		printHead(w, resp)
	}

	if opts.jsonPath != "" {
		result := resp.JSONPath(opts.jsonPath)
		if !result.Exists() {
			return fmt.Errorf("json path %q not found in response", opts.jsonPath)
		}
		fmt.Fprintln(w, result.String())
	} else if body := resp.BodyString(); body != "" {
		fmt.Fprint(w, body)
		if !strings.HasSuffix(body, "\n") {
			fmt.Fprintln(w)
		}
	}

	if schema != "" {
		if err := resp.MatchesSchema(schema); err != nil {
			return err
		}
	}
	return nil
}

// buildClient returns the client selected by cfg.Mode.
func buildClient(cfg *config.Config, logger zerolog.Logger) (client.Client, error) {
	if cfg.Mode == config.ModeKernel {
		app := mock.NewServer(mock.WithLogger(logger))
		if err := app.LoadFiles(cfg.Fixtures); err != nil {
			return nil, withExitCode(ExitParseError, fmt.Errorf("failed to load fixtures: %w", err))
		}

		browserOpts := []browser.Option{
			browser.WithFollowRedirects(cfg.GetFollowRedirects()),
			browser.WithLogger(logger),
		}
		if cfg.MaxRedirects > 0 {
			browserOpts = append(browserOpts, browser.WithMaxRedirects(cfg.MaxRedirects))
		}
		if cfg.BaseURL != "" {
			u, err := url.Parse(cfg.BaseURL)
			if err != nil || !u.IsAbs() {
				return nil, withExitCode(ExitConfigError, fmt.Errorf("invalid base URL %q", cfg.BaseURL))
			}
			browserOpts = append(browserOpts, browser.WithBaseURL(cfg.BaseURL))
		}

		kc := client.NewKernelClient(client.WithKernelLogger(logger))
		kc.SetBrowser(browser.New(app, browserOpts...))
		return kc, nil
	}

	httpOpts := []client.HTTPOption{
		client.WithFollowRedirects(cfg.GetFollowRedirects()),
		client.WithValidateSSL(cfg.GetValidateSSL()),
		client.WithHTTPLogger(logger),
	}
	if cfg.Timeout > 0 {
		httpOpts = append(httpOpts, client.WithTimeout(cfg.TimeoutDuration()))
	}
	if cfg.MaxRedirects > 0 {
		httpOpts = append(httpOpts, client.WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.Proxy != "" {
		httpOpts = append(httpOpts, client.WithProxy(cfg.Proxy))
	}
	return client.NewHTTPClient(httpOpts...), nil
}

// parseHeaders merges "Name: value" flags over the configured headers.
func parseHeaders(defaults map[string]string, flags []string) (map[string]string, error) {
	headers := make(map[string]string, len(defaults)+len(flags))
	for k, v := range defaults {
		headers[k] = v
	}
	for _, h := range flags {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q (expected \"Name: value\")", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// resolveURL resolves a relative request URL against base.
func resolveURL(base, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.IsAbs() {
		return raw, nil
	}
	if base == "" {
		return "", fmt.Errorf("relative URL %q requires a base URL", raw)
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	if !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
	}
	return b.ResolveReference(&url.URL{
		Path:     strings.TrimPrefix(u.Path, "/"),
		RawQuery: u.RawQuery,
	}).String(), nil
}

func readData(data string) (string, error) {
	if !strings.HasPrefix(data, "@") {
		return data, nil
	}
	content, err := os.ReadFile(strings.TrimPrefix(data, "@"))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(content), nil
}

func printHead(w io.Writer, resp *client.Response) {
	statusColor(resp).Fprintln(w, resp.Status)

	names := make([]string, 0, len(resp.Headers))
	for name := range resp.Headers {
		names = append(names, name)
	}
	sort.Strings(names)

	key := color.New(color.FgCyan)
	for _, name := range names {
		for _, v := range resp.Headers[name] {
			key.Fprintf(w, "%s:", name)
			fmt.Fprintf(w, " %s\n", v)
		}
	}
	fmt.Fprintln(w)
}

func statusColor(resp *client.Response) *color.Color {
	switch {
	case resp.IsSuccess():
		return color.New(color.FgGreen, color.Bold)
	case resp.IsRedirect():
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}
