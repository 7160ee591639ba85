package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/cinevec/cinevec/internal/models"
	"github.com/cinevec/cinevec/pkg/chunker"
	"github.com/cinevec/cinevec/pkg/config"
	"github.com/cinevec/cinevec/pkg/embed"
	"github.com/cinevec/cinevec/pkg/ingest"
	"github.com/cinevec/cinevec/pkg/llm"
	"github.com/cinevec/cinevec/pkg/logger"
	"github.com/cinevec/cinevec/pkg/rag"
	"github.com/cinevec/cinevec/pkg/retriever"
	"github.com/cinevec/cinevec/pkg/store"
	"github.com/cinevec/cinevec/server"
)

const usage = `cinevec - question answering over an embedded movie catalog

Usage:
  cinevec <command> [flags]

Commands:
  ingest   load, embed and index a document directory
  ask      answer a single question and exit
  chat     interactive question answering session
  serve    run the HTTP and websocket API
  status   show index size and configuration
  help     print this message

Run 'cinevec <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "ingest":
		err = runIngest(os.Args[2:])
	case "ask":
		err = runAsk(os.Args[2:])
	case "chat":
		err = runChat(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "status":
		err = runStatus(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func commonFlags(fs *flag.FlagSet) (configPath *string, debug *bool) {
	configPath = fs.String("config", "", "path to the YAML config file")
	debug = fs.Bool("debug", false, "enable debug logging")
	return configPath, debug
}

// setup loads and validates configuration. Every violation is printed, not
// just the first, so a fresh deployment can be fixed in one pass.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if violations := cfg.Validate(); len(violations) > 0 {
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "config: %s\n", v.Error())
		}
		return nil, nil, fmt.Errorf("invalid configuration (%d problems)", len(violations))
	}

	return cfg, logger.New(debug || cfg.Logging.Debug), nil
}

func newEmbedder(cfg *config.Config, log *zap.Logger) (embed.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "hash":
		return embed.NewHashEmbedder(cfg.Embedding.Dimensions), nil
	default:
		return embed.NewONNXEmbedder(embed.ONNXConfig{
			ModelPath:   cfg.Embedding.ModelPath,
			LibraryPath: cfg.Embedding.LibraryPath,
			Dimensions:  cfg.Embedding.Dimensions,
			MaxTokens:   cfg.Embedding.MaxTokens,
			CacheSize:   cfg.Embedding.CacheSize,
		}, log)
	}
}

func newStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*store.VectorStore, error) {
	return store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString: cfg.DatabaseURL(),
		TableName:  cfg.Database.TableName,
		VectorDim:  cfg.Embedding.Dimensions,
		BatchSize:  cfg.Database.BatchSize,
	}, log)
}

func newEngine(ctx context.Context, cfg *config.Config, embedder embed.Embedder, vs *store.VectorStore, log *zap.Logger) (*rag.Engine, error) {
	client, err := llm.NewWithConfig(ctx, llm.Config{
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		Temperature:       cfg.LLM.Temperature,
		MaxTokens:         cfg.LLM.MaxTokens,
		Timeout:           time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("initialize llm client: %w", err)
	}

	return rag.NewEngine(retriever.New(embedder, vs, log), client, log), nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	dir := fs.String("dir", "", "directory to ingest (defaults to ingest.dir from config)")
	watch := fs.Bool("watch", false, "keep running and re-ingest when files change")
	fs.Parse(args)

	cfg, log, err := setup(*configPath, *debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	root := *dir
	if root == "" {
		root = cfg.Ingest.Dir
	}
	if root == "" {
		return fmt.Errorf("no ingest directory: pass -dir or set ingest.dir in the config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := newEmbedder(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize embedder: %w", err)
	}
	defer embedder.Close()

	vs, err := newStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize vector store: %w", err)
	}
	defer vs.Close()

	ch := chunker.NewWithConfig(chunker.ChunkerConfig{
		Size:    cfg.Chunker.Size,
		Overlap: cfg.Chunker.Overlap,
	})

	var bar *progressbar.ProgressBar
	pipeline := ingest.NewPipeline(ch, embedder, vs, ingest.PipelineConfig{
		BatchSize: cfg.Database.BatchSize,
		OnProgress: func(done, total int) {
			if bar == nil {
				bar = getProgressBar(total, "Embedding chunks...")
			}
			bar.Set(done)
		},
	}, log)

	stats, err := pipeline.Run(ctx, root)
	if err != nil {
		return err
	}
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}
	printStats(root, stats)

	if !*watch {
		return nil
	}

	color.Cyan("Watching %s for changes (ctrl-c to stop)", root)
	debounce := time.Duration(cfg.Ingest.WatchDebounceMS) * time.Millisecond
	return ingest.NewWatcher(pipeline, root, debounce, log).Watch(ctx)
}

func printStats(dir string, stats *models.IngestStats) {
	color.Green("✓ Ingested %s", dir)
	fmt.Printf("  files:     %d\n", stats.Files)
	fmt.Printf("  documents: %d\n", stats.Documents)
	fmt.Printf("  chunks:    %d\n", stats.Chunks)
	fmt.Printf("  skipped:   %d\n", stats.Skipped)
	fmt.Printf("  errors:    %d\n", stats.Errors)
	fmt.Printf("  took:      %s\n", stats.Duration.Round(time.Millisecond))
}

func runAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	topK := fs.Int("top-k", 0, "context chunks to retrieve (defaults to retrieval.top_k)")
	fs.Parse(args)

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("no question given: cinevec ask [flags] <question>")
	}

	cfg, log, err := setup(*configPath, *debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := newEmbedder(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize embedder: %w", err)
	}
	defer embedder.Close()

	vs, err := newStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize vector store: %w", err)
	}
	defer vs.Close()

	engine, err := newEngine(ctx, cfg, embedder, vs, log)
	if err != nil {
		return err
	}

	k := *topK
	if k <= 0 {
		k = cfg.Retrieval.TopK
	}

	spinner := getSpinner("Searching the catalog...")
	result, err := engine.Ask(ctx, question, k)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)
	printSources(result.Chunks)
	return nil
}

func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	topK := fs.Int("top-k", 0, "context chunks to retrieve (defaults to retrieval.top_k)")
	fs.Parse(args)

	cfg, log, err := setup(*configPath, *debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := newEmbedder(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize embedder: %w", err)
	}
	defer embedder.Close()

	vs, err := newStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize vector store: %w", err)
	}
	defer vs.Close()

	engine, err := newEngine(ctx, cfg, embedder, vs, log)
	if err != nil {
		return err
	}

	k := *topK
	if k <= 0 {
		k = cfg.Retrieval.TopK
	}

	color.Cyan("Chat with the movie catalog (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.EqualFold(question, "exit") {
			break
		}

		spinner := getSpinner("Searching the catalog...")
		result, err := engine.Ask(ctx, question, k)
		spinner.Finish()
		fmt.Print("\r")

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			color.Red("Error: %v", err)
			continue
		}

		assistantPrompt("Assistant: %s\n", result.Answer)
		printSources(result.Chunks)
	}

	return scanner.Err()
}

func printSources(chunks []models.ScoredChunk) {
	if len(chunks) == 0 {
		return
	}

	faint := color.New(color.Faint).PrintfFunc()
	faint("\nSources:\n")
	for i, chunk := range chunks {
		name := chunk.Title
		if name == "" {
			name = chunk.SourceID
		}
		faint("  %d. %s (score %.2f)\n", i+1, name, chunk.Score)
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	fs.Parse(args)

	cfg, log, err := setup(*configPath, *debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := newEmbedder(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize embedder: %w", err)
	}
	defer embedder.Close()

	vs, err := newStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize vector store: %w", err)
	}
	defer vs.Close()

	engine, err := newEngine(ctx, cfg, embedder, vs, log)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		TopK:       cfg.Retrieval.TopK,
		Model:      cfg.LLM.Model,
		Provider:   cfg.Embedding.Provider,
		Dimensions: cfg.Embedding.Dimensions,
		Table:      cfg.Database.TableName,
	}, engine, vs, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	fs.Parse(args)

	cfg, log, err := setup(*configPath, *debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	vs, err := newStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize vector store: %w", err)
	}
	defer vs.Close()

	count, err := vs.Count(ctx)
	if err != nil {
		return fmt.Errorf("count chunks: %w", err)
	}

	fmt.Printf("table:      %s\n", cfg.Database.TableName)
	fmt.Printf("chunks:     %d\n", count)
	fmt.Printf("provider:   %s\n", cfg.Embedding.Provider)
	fmt.Printf("dimensions: %d\n", cfg.Embedding.Dimensions)
	fmt.Printf("model:      %s\n", cfg.LLM.Model)
	return nil
}
