package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/manash/pollgen/internal/cache"
	"github.com/manash/pollgen/internal/config"
	"github.com/manash/pollgen/internal/display"
	"github.com/manash/pollgen/internal/fetch"
	"github.com/manash/pollgen/internal/generator"
	"github.com/manash/pollgen/internal/image"
	"github.com/manash/pollgen/internal/keys"
	"github.com/manash/pollgen/internal/logging"
	"github.com/manash/pollgen/internal/pollinations"
	"github.com/manash/pollgen/internal/translate"
	"github.com/manash/pollgen/internal/upload"
)

var (
	version = "dev"
	commit  = "none"
)

type App struct {
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	GetEnv func(string) string
	// IsInteractive reports whether stdin is a terminal.
	IsInteractive func() bool
	// UploadServerURL maps a GoFile server name to its upload base URL.
	// Nil uses the public gofile.io hosts.
	UploadServerURL func(server string) string
}

func DefaultApp() *App {
	return &App{
		In:     os.Stdin,
		Out:    os.Stdout,
		Err:    os.Stderr,
		GetEnv: os.Getenv,
		IsInteractive: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return newRootCmd(DefaultApp()).ExecuteContext(ctx)
}

type globalOptions struct {
	configPath string
	envFile    string
	verbose    bool
	noCache    bool
}

func newRootCmd(app *App) *cobra.Command {
	opts := &globalOptions{}
	gen := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "pollgen [prompt]",
		Short: "Generate and edit images with Pollinations",
		Long: `pollgen generates images from text prompts with the Pollinations API,
edits existing images through a chain of edit models, and keeps a local
cache so repeated prompts are served from disk.

Run without arguments in a terminal to start interactive mode.

Examples:
  pollgen "a lighthouse at dawn"
  pollgen generate --width 512 --height 512 --seed 42 "isometric city"
  pollgen edit photo.png "make it a watercolor"
  pollgen batch prompts.txt --workers 3
  pollgen diagnose`,
		Args:          cobra.ArbitraryArgs,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return runGenerate(cmd.Context(), app, opts, gen, strings.Join(args, " "))
			}
			if app.IsInteractive == nil || !app.IsInteractive() {
				return cmd.Help()
			}
			return runInteractive(cmd.Context(), app, opts)
		},
	}
	cmd.SetIn(app.In)
	cmd.SetOut(app.Out)
	cmd.SetErr(app.Err)

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "settings document (JSON)")
	pf.StringVar(&opts.envFile, "env-file", config.DefaultEnvFile, "dotenv file with credentials")
	pf.BoolVar(&opts.verbose, "verbose", false, "log debug output to the console")
	pf.BoolVar(&opts.noCache, "no-cache", false, "bypass the image cache for this run")
	gen.bind(cmd)

	cmd.AddCommand(
		newGenerateCmd(app, opts),
		newEditCmd(app, opts),
		newBatchCmd(app, opts),
		newTemplateCmd(app, opts),
		newInteractiveCmd(app, opts),
		newHistoryCmd(app, opts),
		newCacheCmd(app, opts),
		newDiagnoseCmd(app, opts),
		newConfigCmd(app, opts),
		newKeysCmd(app, opts),
	)
	return cmd
}

// runtime holds the collaborators built for one command invocation.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	cache    *cache.Cache
	uploader *upload.Client
	endpoint pollinations.Endpoint
	gen      *generator.Generator
}

func (rt *runtime) Close() {
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			rt.logger.Warn("failed to close cache", zap.Error(err))
		}
	}
	_ = rt.logger.Sync()
}

func (app *App) consoleLogger(opts *globalOptions) *zap.Logger {
	level := zapcore.WarnLevel
	if opts.verbose {
		level = zapcore.DebugLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Development: true,
		Console:     zapcore.Lock(zapcore.AddSync(app.Err)),
	})
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func (app *App) keyStore(logger *zap.Logger) *keys.Store {
	store, err := keys.NewStore(app.GetEnv)
	if err != nil {
		logger.Warn("credential store unavailable", zap.Error(err))
		return nil
	}
	return store
}

func (app *App) loadConfig(opts *globalOptions, logger *zap.Logger) (*config.Config, error) {
	cfg := config.Load(opts.configPath, config.LoadOptions{
		EnvFile: opts.envFile,
		GetEnv:  app.GetEnv,
		Keys:    app.keyStore(logger),
		Logger:  logger,
	})
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s:\n%w", opts.configPath, err)
	}
	return cfg, nil
}

// setup loads configuration and builds the logger, cache, uploader and
// generator. The caller must Close the runtime.
func (app *App) setup(opts *globalOptions) (*runtime, error) {
	boot := app.consoleLogger(opts)
	cfg, err := app.loadConfig(opts, boot)
	if err != nil {
		return nil, err
	}

	level := logging.ParseLevel(app.GetEnv(logging.LevelEnvVar), zapcore.InfoLevel)
	consoleLevel := zapcore.WarnLevel
	if opts.verbose {
		level, consoleLevel = zapcore.DebugLevel, zapcore.DebugLevel
	}
	logger, err := logging.New(logging.Options{
		Level:        level,
		ConsoleLevel: consoleLevel,
		Development:  true,
		FilePath:     cfg.LogFile,
		Console:      zapcore.Lock(zapcore.AddSync(app.Err)),
	})
	if err != nil {
		return nil, err
	}
	cfg.LogCredentialStatus(logger)

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		endpoint: pollinations.NewEndpoint(cfg.BaseURL),
	}

	format, _ := cfg.OutputFormat()
	editModel, _ := cfg.PreferredEditModel()

	rt.uploader = upload.New(upload.Options{
		APIURL:    cfg.GoFileAPIURL,
		ServerURL: app.UploadServerURL,
		Token:     cfg.GoFileToken(),
		FolderID:  cfg.GoFileFolderID(),
		Logger:    logger,
	})

	deps := generator.Deps{
		Fetcher: fetch.New(fetch.Options{
			Timeout: cfg.RequestTimeout(),
			Policy:  fetch.DefaultRetryPolicy(cfg.MaxRetries),
			Logger:  logger,
		}),
		Saver:      image.NewSaver(cfg.OutputDir, format, logger),
		Uploader:   rt.uploader,
		Translator: translate.NewMyMemory(translate.Options{URL: cfg.TranslateURL}),
		Logger:     logger,
	}

	if cfg.EnableCache && !opts.noCache {
		c, err := cache.Open(cfg.CacheDir, cache.Options{MaxAge: cfg.CacheMaxAge(), Logger: logger})
		if err != nil {
			logger.Warn("cache unavailable, continuing without it", zap.Error(err))
		} else {
			rt.cache = c
			deps.Cache = c
		}
	}

	rt.gen = generator.New(generator.Config{
		Defaults:  cfg.Params(),
		Endpoint:  rt.endpoint,
		Token:     cfg.APIKey(),
		EditModel: editModel,
	}, deps)

	return rt, nil
}

func (app *App) previewer() *display.Displayer {
	d := display.New(app.Out, app.GetEnv)
	if !d.Supported() {
		return nil
	}
	return d
}
