package main

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	classifyx "github.com/pocketsage/pocketsage/agent/classify"
	dispatchx "github.com/pocketsage/pocketsage/agent/dispatch"
	ledgerx "github.com/pocketsage/pocketsage/agent/ledger"
	llmx "github.com/pocketsage/pocketsage/agent/llm"
	promptx "github.com/pocketsage/pocketsage/agent/prompt"
	statex "github.com/pocketsage/pocketsage/agent/state"
	workersx "github.com/pocketsage/pocketsage/agent/workers"
	configx "github.com/pocketsage/pocketsage/pkg/config"
	_ "github.com/pocketsage/pocketsage/pkg/logger/autoload"
	openrouterx "github.com/pocketsage/pocketsage/pkg/openrouter"
	upstashx "github.com/pocketsage/pocketsage/pkg/upstash"
)

type AppConfig struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`

	// StoreBackend selects where locks and history live:
	// "memory" for a single process, "upstash" for shared state.
	StoreBackend string `envconfig:"STORE_BACKEND" default:"memory"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("")

	openRouterCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")
	openRouterClient := openrouterx.NewClient(*openRouterCfg)
	if openRouterClient == nil {
		log.Fatal().Msg("failed to initialize openrouter client")
	}

	llmCfg := configx.MustNew[llmx.Config]("LLM")

	locks, history := buildStateStores(appCfg.StoreBackend)

	ledgerCfg := configx.MustNew[ledgerx.Config]("POSTGRES")
	ledgerStore, err := ledgerx.NewPostgresStore(*ledgerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open ledger store")
	}
	defer ledgerStore.Close()
	if err := ledgerStore.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize ledger tables")
	}

	registry, err := workersx.NewRegistry(openRouterClient, *llmCfg, ledgerStore)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build worker registry")
	}

	prompts := promptx.LoadPromptSet()
	classifier, err := classifyx.New(openRouterClient, llmCfg.For(llmx.RoleClassifier), prompts.Classifier)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build classifier")
	}

	dispatchCfg := configx.MustNew[dispatchx.Config]("DISPATCH")
	dispatcher, err := dispatchx.New(locks, history, classifier, registry, *dispatchCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build dispatcher")
	}

	srv := newServer(dispatcher, !appCfg.Debug)
	log.Info().Str("addr", appCfg.HTTPAddr).Str("store", appCfg.StoreBackend).Msg("starting pocketsage")
	if err := srv.Run(appCfg.HTTPAddr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func buildStateStores(backend string) (statex.LockStore, statex.HistoryStore) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "memory":
		return statex.NewMemoryLockStore(), statex.NewMemoryHistoryStore()
	case "upstash":
		upstashCfg := configx.MustNew[upstashx.Config]("UPSTASH")
		client := upstashx.MustNew(*upstashCfg)

		locks, err := statex.NewUpstashLockStore(client)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build upstash lock store")
		}
		history, err := statex.NewUpstashHistoryStore(client)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build upstash history store")
		}
		return locks, history
	default:
		log.Fatal().Str("backend", backend).Msg("unknown store backend")
		return nil, nil
	}
}
