package app

import (
	"context"
	"errors"
	"fmt"

	"hybrid_copilot/internal/config"
	"hybrid_copilot/internal/core"
	"hybrid_copilot/internal/llm"
	"hybrid_copilot/internal/logger"
	"hybrid_copilot/internal/metrics"
	"hybrid_copilot/internal/nodes"
	"hybrid_copilot/internal/retrieval"
	"hybrid_copilot/internal/sqltool"
	"hybrid_copilot/internal/storage"
)

// App owns the long-lived resources shared by the CLI commands
type App struct {
	Env      *config.Config
	Settings *config.YAMLConfig
	Executor *sqltool.Executor
	Index    *retrieval.Index
	Recorder *metrics.Recorder

	store storage.RunStore
}

// LoadSettings reads the environment and the optional config file, then
// initializes the global logger
func LoadSettings(configPath string) (*config.Config, *config.YAMLConfig, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, nil, err
	}

	if err := logger.InitLogger(env.LogConfig); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	settings, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	return env, settings, nil
}

// New opens the dataset and indexes the document corpus
func New(ctx context.Context, env *config.Config, settings *config.YAMLConfig) (*App, error) {
	executor, err := sqltool.Open(ctx, env.StorageConfig.DatabasePath)
	if err != nil {
		return nil, err
	}

	index, err := retrieval.NewFromDir(ctx, env.StorageConfig.DocsDir,
		settings.Retrieval.Documents, settings.Retrieval.MinChunkChars)
	if err != nil {
		executor.Close()
		return nil, err
	}

	logger.Info().
		Str("database", env.StorageConfig.DatabasePath).
		Str("docs_dir", env.StorageConfig.DocsDir).
		Int("passages", index.Len()).
		Msg("Application resources ready")

	return &App{
		Env:      env,
		Settings: settings,
		Executor: executor,
		Index:    index,
		Recorder: metrics.NewRecorder(),
	}, nil
}

// Pipeline builds the model-backed transforms and compiles the processor
func (a *App) Pipeline(ctx context.Context) (*core.Processor, error) {
	llmCfg := a.Env.LLMConfig

	cm, err := llm.NewChatModel(ctx, llmCfg)
	if err != nil {
		return nil, err
	}

	classifier, err := llm.NewClassifier(ctx, cm, llmCfg.Timeout)
	if err != nil {
		return nil, err
	}
	generator, err := llm.NewQueryGenerator(ctx, cm, llmCfg.Timeout)
	if err != nil {
		return nil, err
	}
	synthesizer, err := llm.NewSynthesizer(ctx, cm, llmCfg.Timeout)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("provider", llmCfg.Provider).
		Str("model", llmCfg.Model).
		Dur("timeout", llmCfg.Timeout).
		Msg("Chat model configured")

	return nodes.NewPipeline(ctx, a.Settings.Pipeline, nodes.Collaborators{
		Retriever:   a.Index,
		Executor:    a.Executor,
		Classifier:  classifier,
		Generator:   generator,
		Synthesizer: synthesizer,
	}, a.Recorder)
}

// Toolbox exposes the dataset and the corpus as agent tools
func (a *App) Toolbox(ctx context.Context) (*nodes.Toolbox, error) {
	tools, err := nodes.GetTools(a.Executor, a.Index, a.Settings.Pipeline.MaxResultRows, a.Settings.Pipeline.TopK)
	if err != nil {
		return nil, err
	}
	return nodes.NewToolbox(ctx, tools...)
}

// Agent binds the toolbox to the configured chat model
func (a *App) Agent(ctx context.Context, maxRounds int) (*nodes.ToolAgent, error) {
	cm, err := llm.NewChatModel(ctx, a.Env.LLMConfig)
	if err != nil {
		return nil, err
	}
	box, err := a.Toolbox(ctx)
	if err != nil {
		return nil, err
	}
	return nodes.NewToolAgent(cm, box, maxRounds)
}

// Store opens the run store on first use
func (a *App) Store(ctx context.Context) (storage.RunStore, error) {
	if a.store != nil {
		return a.store, nil
	}

	store, err := storage.NewRunStore(ctx, a.Env.StorageConfig.RedisURL, a.Env.StorageConfig.RunTTL)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

// Close releases every resource
func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	errs = append(errs, a.Index.Close(), a.Executor.Close())
	return errors.Join(errs...)
}
