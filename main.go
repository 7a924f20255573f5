package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/agents"
	"github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/agents/orchestrator"
	"github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/capability"
	contractx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/contract"
	"github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/llm"
	"github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/prompt"
	statex "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/state"
	configx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/pkg/config"
	_ "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/pkg/logger/autoload"
	openrouterx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/pkg/openrouter"
	websearchx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/pkg/websearch"
	"github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/rag"
	"github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/server"
	"github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/store"
)

type AppConfig struct {
	CacheBackend string `envconfig:"CACHE_BACKEND" split_words:"true" default:"memory"`
}

func main() {
	root := &cobra.Command{
		Use:           "assistant",
		Short:         "Post-discharge patient assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), seedCmd(), ingestCmd())

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			service, err := buildService(ctx, db)
			if err != nil {
				return err
			}

			serverCfg := configx.MustNew[server.Config]("SERVER")
			srv, err := server.New(*serverCfg, service)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx)
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Populate the patient table with a sample discharge cohort",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := store.SeedPatients(ctx, db)
			if err != nil {
				return err
			}
			log.Info().Int("patients", n).Msg("seed complete")
			return nil
		},
	}
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Embed reference documents into the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			embedder, err := buildEmbedder()
			if err != nil {
				return err
			}

			for _, path := range args {
				n, err := rag.Ingest(ctx, db, embedder, path)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				log.Info().Str("file", path).Int("chunks", n).Msg("ingested")
			}
			return nil
		},
	}
}

func openDB(ctx context.Context) (*bun.DB, error) {
	dbCfg := configx.MustNew[store.Config]("DB")
	db, err := store.Open(*dbCfg)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func buildService(ctx context.Context, db *bun.DB) (*orchestrator.Service, error) {
	appCfg := configx.MustNew[AppConfig]("")

	patients := store.NewPatientStore(db)
	sessions := store.NewSessionStore(db)
	interactions := store.NewInteractionStore(db)
	audit := store.NewAuditStore(db)

	cache, err := buildCache(appCfg.CacheBackend)
	if err != nil {
		return nil, err
	}

	rebuilder, err := statex.NewReconstructor(sessions, patients)
	if err != nil {
		return nil, err
	}

	llmCfg := configx.MustNew[llm.Config]("OPENROUTER")

	embedder, err := buildEmbedder()
	if err != nil {
		return nil, err
	}
	retriever, err := rag.NewRetriever(db, embedder)
	if err != nil {
		return nil, err
	}

	searchCfg := configx.MustNew[websearchx.Config]("WEBSEARCH")
	searcher := searchAdapter{client: websearchx.MustNew(*searchCfg)}

	invoker, err := capability.NewInvoker(patients, retriever, searcher, audit)
	if err != nil {
		return nil, err
	}

	registry, err := agents.NewRegistry(ctx, *llmCfg, prompt.LoadPromptSet(), invoker)
	if err != nil {
		return nil, err
	}

	return orchestrator.New(interactions, sessions, cache, rebuilder, registry)
}

func buildCache(backend string) (statex.Cache, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "memory":
		return statex.NewMemoryCache(), nil
	case "redis":
		redisCfg := configx.MustNew[statex.RedisCacheConfig]("REDIS")
		return statex.NewRedisCache(*redisCfg)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

func buildEmbedder() (*rag.OpenAIEmbedder, error) {
	llmCfg := configx.MustNew[llm.Config]("OPENROUTER")
	client := openrouterx.NewClient(llmCfg.OpenRouterFor(statex.AgentClinical))
	return rag.NewOpenAIEmbedder(client, llmCfg.EmbeddingModel)
}

// searchAdapter bridges the websearch client onto the capability contract.
type searchAdapter struct {
	client *websearchx.Client
}

func (a searchAdapter) Search(ctx context.Context, query string) ([]contractx.SearchHit, error) {
	hits, err := a.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]contractx.SearchHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, contractx.SearchHit{Title: h.Title, Snippet: h.Snippet, URL: h.URL})
	}
	return out, nil
}
