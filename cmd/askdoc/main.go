package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xxxsen/askdoc/internal/ai"
	"github.com/xxxsen/askdoc/internal/chunker"
	"github.com/xxxsen/askdoc/internal/config"
	"github.com/xxxsen/askdoc/internal/handler"
	"github.com/xxxsen/askdoc/internal/job"
	"github.com/xxxsen/askdoc/internal/middleware"
	"github.com/xxxsen/askdoc/internal/repo"
	"github.com/xxxsen/askdoc/internal/schedule"
	"github.com/xxxsen/askdoc/internal/service"
)

type app struct {
	cfg        *config.Config
	docs       *repo.DocumentRepo
	embeddings *repo.EmbeddingRepo
	queries    *repo.QueryRepo
	index      *service.IndexService
	search     *service.SearchService
	repair     *service.RepairService
}

func newApp(configPath string) (*app, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

	db, err := repo.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := repo.ApplyMigrations(db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	provider, err := ai.NewProvider(cfg.AI.Provider, map[string]interface{}{"api_key": cfg.AI.APIKey})
	if err != nil {
		return nil, fmt.Errorf("init ai provider: %w", err)
	}
	embedder := ai.NewEmbedder(provider, cfg.AI.EmbeddingModel)
	generator := ai.NewGenerator(provider, cfg.AI.GenerationModel)
	limiter := rate.NewLimiter(rate.Limit(cfg.Index.EmbedRatePerSec), cfg.Index.EmbedBurst)

	docs := repo.NewDocumentRepo(db)
	embeddings := repo.NewEmbeddingRepo(db)
	queries := repo.NewQueryRepo(db)

	return &app{
		cfg:        cfg,
		docs:       docs,
		embeddings: embeddings,
		queries:    queries,
		index:      service.NewIndexService(embedder, docs, embeddings, limiter, cfg.Index.MaxChunkBytes),
		search:     service.NewSearchService(embedder, generator, docs, embeddings, queries, cfg.Retrieval.TopK, cfg.Retrieval.SimilarityThreshold),
		repair:     service.NewRepairService(embedder, docs, embeddings, limiter, cfg.Index.MaxChunkBytes),
	}, nil
}

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "askdoc",
		Short: "askdoc document QA service",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	rootCmd.AddCommand(
		runCommand(&configPath),
		ingestCommand(&configPath),
		askCommand(&configPath),
		searchCommand(&configPath),
		repairCommand(&configPath),
		statsCommand(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run the askdoc server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			return runServer(a)
		},
	}
}

func runServer(a *app) error {
	log := logutil.GetLogger(context.Background())
	log.Info("starting server", zap.Int("port", a.cfg.Port), zap.String("db_path", a.cfg.DBPath))

	deps := handler.RouterDeps{
		Ask:           handler.NewAskHandler(a.search),
		Documents:     handler.NewDocumentHandler(a.index, a.docs, a.embeddings),
		Admin:         handler.NewAdminHandler(a.repair, a.docs, a.embeddings, a.queries),
		AskRateWindow: timeWindow(a.cfg.AskRateWindowSec),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", a.cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(a.cfg.CORSList),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewOrphanSweepJob(a.repair), a.cfg.Schedule.OrphanSweepSpec); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("server stopping...")
	return nil
}

func ingestCommand(configPath *string) *cobra.Command {
	var docID string
	var title string
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "index a text or markdown file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			content := string(data)
			if strings.EqualFold(filepath.Ext(args[0]), ".md") {
				content = chunker.MarkdownToText(content)
			}
			name := filepath.Base(args[0])
			if docID == "" {
				docID = strings.TrimSuffix(name, filepath.Ext(name))
			}
			if title == "" {
				title = name
			}
			metadata := map[string]interface{}{"source": name}
			if ok := a.index.Ingest(cmd.Context(), docID, title, content, metadata); !ok {
				return fmt.Errorf("ingest failed for %s", docID)
			}
			fmt.Printf("ingested %s\n", docID)
			return nil
		},
	}
	cmd.Flags().StringVar(&docID, "id", "", "document id (default: file name without extension)")
	cmd.Flags().StringVar(&title, "title", "", "document title (default: file name)")
	return cmd
}

func askCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "ask a question against the indexed documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			result, err := a.search.Ask(cmd.Context(), args[0], "cli")
			if err != nil {
				return err
			}
			fmt.Println(result.Answer)
			for _, src := range result.Sources {
				fmt.Printf("  [%.4f] %s %s\n", src.Similarity, src.ChunkID, src.Title)
			}
			return nil
		},
	}
}

func searchCommand(configPath *string) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "retrieve the most similar chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			results := a.search.Retrieve(cmd.Context(), args[0], topK)
			if len(results) == 0 {
				fmt.Println("no results")
				return nil
			}
			for _, res := range results {
				fmt.Printf("[%.4f] %s %s\n", res.Similarity, res.ChunkID, res.Title)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 0, "number of results (default: configured top_k)")
	return cmd
}

func repairCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "repair <reembed|reembed-avg|merge|orphans|all>",
		Short:     "run consistency repair over the stores",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"reembed", "reembed-avg", "merge", "orphans", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var reports []*service.Report
			switch args[0] {
			case "reembed":
				reports = append(reports, a.repair.ReembedAll(ctx))
			case "reembed-avg":
				reports = append(reports, a.repair.ReembedAveraged(ctx))
			case "merge":
				reports = append(reports, a.repair.MergeDuplicates(ctx))
			case "orphans":
				reports = append(reports, a.repair.SweepOrphans(ctx))
			case "all":
				reports = append(reports, a.repair.MergeDuplicates(ctx), a.repair.SweepOrphans(ctx))
			default:
				return fmt.Errorf("unknown repair operation: %s", args[0])
			}
			for _, report := range reports {
				for _, line := range report.Lines {
					fmt.Println(line)
				}
				fmt.Printf("added=%d removed=%d failed=%d\n", report.Added, report.Removed, report.Failed)
			}
			return nil
		},
	}
}

func statsCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			docCount, err := a.docs.Count(ctx)
			if err != nil {
				return err
			}
			embCount, err := a.embeddings.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("documents:  %d\n", docCount)
			fmt.Printf("embeddings: %d\n", embCount)
			recent, err := a.queries.Recent(ctx, 5)
			if err != nil {
				return err
			}
			if len(recent) > 0 {
				fmt.Println("recent queries:")
				for _, rec := range recent {
					fmt.Printf("  %s\n", rec.QueryText)
				}
			}
			return nil
		},
	}
}

func timeWindow(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
