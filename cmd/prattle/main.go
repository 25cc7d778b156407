package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/prattle-dev/prattle/pkg/markov"
	"github.com/prattle-dev/prattle/pkg/store"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const usageText = `Usage: prattle [flags] [input-file] [seed words...]

Trains a Markov model from a text file (or stdin) and generates text
continuing from the seed phrase. When the input file is a previously saved
model (see -save), it is loaded instead of trained. With -store and -model,
models are kept in a SQLite library instead of loose files.

Flags:
`

type options struct {
	outputSize int
	stateSize  int
	savePath   string
	storePath  string
	modelName  string
	pruneMin   int
	repl       bool
	configPath string
	logLevel   string
	version    bool
	args       []string
}

func parseFlags(argv []string) *options {
	fs := flag.NewFlagSet("prattle", flag.ExitOnError)
	opts := &options{}
	fs.IntVar(&opts.outputSize, "n", 0, "number of tokens to generate (default 200)")
	fs.IntVar(&opts.stateSize, "order", 0, "tokens per state; higher increases coherence, reduces variety (default 2)")
	fs.StringVar(&opts.savePath, "save", "", "save the model to this file instead of generating")
	fs.StringVar(&opts.storePath, "store", "", "path to a SQLite model library")
	fs.StringVar(&opts.modelName, "model", "", "model name in the library to save to or load from")
	fs.IntVar(&opts.pruneMin, "prune", 0, "drop transitions seen at most this many times before use")
	fs.BoolVar(&opts.repl, "repl", false, "interactive mode: read seed phrases line by line")
	fs.StringVar(&opts.configPath, "config", "", "path to a JSON config file")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.BoolVar(&opts.version, "version", false, "print version information and exit")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usageText)
		fs.PrintDefaults()
	}
	_ = fs.Parse(argv)
	opts.args = fs.Args()
	return opts
}

func main() {
	opts := parseFlags(os.Args[1:])
	if opts.version {
		fmt.Printf("prattle %s (%s, built %s)\n", Version, Commit, BuildDate)
		return
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "prattle: %v\n", err)
		os.Exit(1)
	}
}

func run(opts *options) error {
	config, err := LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.outputSize > 0 {
		config.OutputSize = opts.outputSize
	}
	if opts.stateSize > 0 {
		config.StateSize = opts.stateSize
	}
	if opts.storePath != "" {
		config.StorePath = opts.storePath
	}
	if opts.logLevel != "" {
		config.LogLevel = opts.logLevel
	}

	logger := newLogger(config.LogLevel)
	ctx := context.Background()

	var st *store.Store
	if opts.modelName != "" {
		if config.StorePath == "" {
			return errors.New("-model requires a model library; pass -store or set store_path")
		}
		db, err := initDB(config.StorePath)
		if err != nil {
			return fmt.Errorf("failed to open model library: %w", err)
		}
		defer func() { _ = db.Close() }()

		if err = store.SetupSchema(db); err != nil {
			return err
		}
		if st, err = store.New(db); err != nil {
			return fmt.Errorf("failed to initialize model library: %w", err)
		}
		st.SetLogger(logger)
		defer st.Close()
	}

	model, seedWords, trained, err := acquireModel(ctx, opts, config, st, logger)
	if err != nil {
		return err
	}
	model.SetLogger(logger)

	if opts.pruneMin > 0 {
		model.Prune(opts.pruneMin)
	}

	stats := model.Stats()
	logger.Debug("Model ready",
		slog.Int("states", stats.States),
		slog.Int("transitions", stats.Transitions),
		slog.Int("total_frequency", stats.TotalFrequency),
		slog.Int("vocabulary", stats.VocabSize),
	)
	if stats.States == 0 {
		logger.Warn("Model has no transitions, the corpus is too short for the state size; output will be empty",
			slog.Int("state_size", model.Order()),
		)
	}

	if opts.savePath != "" {
		data, err := model.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to serialize model: %w", err)
		}
		if err = atomic.WriteFile(opts.savePath, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("failed to write model file: %w", err)
		}
		logger.Info("Model saved",
			slog.String("path", opts.savePath),
			slog.Int("bytes", len(data)),
		)
		return nil
	}

	if trained && st != nil {
		info, err := st.Save(ctx, opts.modelName, model)
		if err != nil {
			return err
		}
		logger.Info("Model saved to library",
			slog.String("model_name", info.Name),
			slog.String("model_uuid", info.UUID),
		)
	}

	if opts.repl {
		return runREPL(model, config.OutputSize, logger)
	}

	seed, err := markov.Tokenize(strings.NewReader(strings.Join(seedWords, " ")))
	if err != nil {
		return err
	}
	generated, err := model.Generate(seed, markov.WithMaxTokens(config.OutputSize))
	if err != nil {
		return err
	}

	// The seed phrase leads the visible output; generation returns only
	// the continuation.
	output := append(seed, generated...)
	if len(output) > 0 {
		fmt.Println(strings.Join(output, " "))
	}
	return nil
}

// acquireModel resolves the model for this invocation: loaded from the
// library, decoded from a saved file, or trained from corpus text (a file
// or stdin). It returns the model, the remaining seed words, and whether
// the model was freshly trained.
func acquireModel(ctx context.Context, opts *options, config *Config, st *store.Store, logger *slog.Logger) (*markov.Model, []string, bool, error) {
	inputPath := ""
	seedWords := opts.args
	if len(opts.args) > 0 {
		if info, err := os.Stat(opts.args[0]); err == nil && !info.IsDir() {
			inputPath = opts.args[0]
			seedWords = opts.args[1:]
		}
	}

	// No corpus on the command line and a library model named: load it.
	if inputPath == "" && st != nil {
		model, info, err := st.Load(ctx, opts.modelName)
		if err != nil {
			return nil, nil, false, err
		}
		logger.Info("Model loaded from library",
			slog.String("model_name", info.Name),
			slog.String("model_uuid", info.UUID),
			slog.Int("state_size", info.Order),
		)
		return model, seedWords, false, nil
	}

	var data []byte
	var err error
	if inputPath == "" {
		if data, err = io.ReadAll(os.Stdin); err != nil {
			return nil, nil, false, fmt.Errorf("failed to read stdin: %w", err)
		}
	} else {
		if data, err = os.ReadFile(inputPath); err != nil {
			return nil, nil, false, fmt.Errorf("failed to read input file: %w", err)
		}
	}

	if markov.IsModelData(data) {
		model, err := markov.UnmarshalModel(data)
		if err != nil {
			return nil, nil, false, err
		}
		logger.Info("Model loaded",
			slog.String("path", inputPath),
			slog.Int("state_size", model.Order()),
			slog.Int("states", model.Len()),
		)
		return model, seedWords, false, nil
	}

	tokens, err := markov.Tokenize(bytes.NewReader(data))
	if err != nil {
		return nil, nil, false, err
	}
	model, err := markov.Build(tokens, config.StateSize)
	if err != nil {
		return nil, nil, false, err
	}
	logger.Info("Model trained",
		slog.Int("corpus_tokens", len(tokens)),
		slog.Int("state_size", config.StateSize),
		slog.Int("states", model.Len()),
	)
	return model, seedWords, true, nil
}

func newLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	// Logs go to stderr, generated text owns stdout.
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
