package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tender-rag/internal/config"
	"tender-rag/internal/crud"
	"tender-rag/internal/db"
	"tender-rag/internal/embedding"
	"tender-rag/internal/helper"
	"tender-rag/internal/ingest"
	"tender-rag/internal/llmservice"
	"tender-rag/internal/models"
	"tender-rag/internal/suggest"
	"tender-rag/internal/vectordb"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	filePath := flag.String("file", "", "Path to a document file to ingest")
	docID := flag.String("id", "", "Document id (generated when empty)")
	docType := flag.String("type", "", "Document type (tender, contract, specification, ...)")
	org := flag.String("org", "", "Owning organization")
	force := flag.Bool("force", false, "Reprocess an existing document id")
	query := flag.String("query", "", "Search the knowledge base")
	filterType := flag.String("filter-type", crud.FilterAll, "Restrict search to one document type")
	deleteID := flag.String("delete", "", "Delete a document by id (comma-separated for a batch)")
	stats := flag.Bool("stats", false, "Print collection statistics")
	suggestField := flag.String("suggest", "", "Field type to suggest text for")
	suggestQuery := flag.String("suggest-query", "", "Free-text query for the suggestion")
	debug := flag.Bool("debug", false, "Verbose logging")
	flag.Parse()

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.LoadConfig(configFilePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx := context.Background()

	metaStore, err := db.Connect(cfg.Snapshot().Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to metadata store")
	}
	defer metaStore.Close()
	if err := metaStore.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error initializing metadata store")
	}

	vectors, err := vectordb.NewStore(cfg.Snapshot().Vector)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}

	embedder, err := embedding.NewGateway(cfg.Snapshot().EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	completer, err := llmservice.NewClient(cfg.Snapshot().Completion)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing completion client")
	}

	service := crud.NewService(cfg, embedder, vectors, metaStore)
	service.EnsureIndexes(ctx)

	switch {
	case *filePath != "":
		processDocument(ctx, cfg, embedder, vectors, metaStore, *filePath, models.DocumentMeta{
			DocumentID:   *docID,
			DocumentType: *docType,
			Organization: *org,
			Force:        *force,
		})
	case *query != "":
		searchDocuments(ctx, service, *query, *filterType)
	case *deleteID != "":
		deleteDocuments(ctx, service, *deleteID)
	case *stats:
		helper.PrettyPrint(service.CollectionStats(ctx))
	case *suggestField != "":
		getSuggestion(ctx, cfg, service, completer, *suggestField, *suggestQuery)
	default:
		flag.Usage()
	}
}

func processDocument(ctx context.Context, cfg *config.Config, embedder *embedding.Gateway, vectors *vectordb.Store, metaStore *db.Store, filePath string, meta models.DocumentMeta) {
	pipeline, err := ingest.NewPipeline(cfg, embedder, vectors, metaStore)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating pipeline")
	}
	defer pipeline.Release()

	result := pipeline.Process(ctx, filePath, meta, func(message string, fraction float64) {
		log.Info().Str("phase", message).Float64("progress", fraction).Msg("ingesting")
	})
	helper.PrettyPrint(result)
	if result.Status != models.StatusSuccess {
		os.Exit(1)
	}
}

func searchDocuments(ctx context.Context, service *crud.Service, query, filterType string) {
	results, total := service.Search(ctx, query, map[string]string{
		models.PayloadDocumentType: filterType,
	}, 10, 0)
	log.Info().Int("total", total).Int("returned", len(results)).Msg("search finished")
	helper.PrettyPrint(results)
}

func deleteDocuments(ctx context.Context, service *crud.Service, ids string) {
	list := strings.Split(ids, ",")
	if len(list) == 1 {
		deleted := service.Delete(ctx, list[0])
		log.Info().Str("document_id", list[0]).Bool("deleted", deleted).Msg("delete finished")
		return
	}
	helper.PrettyPrint(service.BatchDelete(ctx, list))
}

func getSuggestion(ctx context.Context, cfg *config.Config, service *crud.Service, completer *llmservice.Client, fieldType, query string) {
	suggester := suggest.NewService(cfg, service, completer)
	result := suggester.GetSuggestion(ctx, models.SuggestionRequest{
		FieldContext: "cli." + fieldType,
		FieldType:    fieldType,
		Query:        query,
		FormContext:  map[string]any{},
	})
	helper.PrettyPrint(result)
}
