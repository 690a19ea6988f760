package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"agent-orchestrator/internal/api/http"
	"agent-orchestrator/internal/api/http/middleware"
	"agent-orchestrator/internal/app"
	"agent-orchestrator/internal/einoext"
	"agent-orchestrator/internal/model/embedding"
	"agent-orchestrator/internal/model/llm"
	"agent-orchestrator/internal/orchestrator"
	"agent-orchestrator/internal/orchestrator/decision"
	"agent-orchestrator/internal/orchestrator/executor"
	"agent-orchestrator/internal/orchestrator/prompt"
	"agent-orchestrator/internal/orchestrator/session"
	"agent-orchestrator/internal/orchestrator/tool"
	"agent-orchestrator/internal/workflow"
	"agent-orchestrator/pkg/utils"

	einoretriever "github.com/cloudwego/eino/components/retriever"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配控制循环、工具注册表、HTTP Router 与 Middleware）
type App struct {
	bootstrap    *app.Bootstrap
	router       *http.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	ctx := context.Background()

	if bootstrap.LLMClient == nil {
		return nil, fmt.Errorf("model.defaults.llm 未配置，控制循环无法决策")
	}

	manager := session.NewManager(bootstrap.SessionStore)
	registry := tool.NewRegistry()

	chatModel, err := workflow.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化子工作流 chat model failed: %w", err)
	}

	// tool_recommend 检索后端：embedding 未配置或索引初始化失败时跳过注册，
	// 其余工具不受影响
	var catalogRetriever einoretriever.Retriever
	embedder, errEmb := app.NewEmbedderFromConfig(cfg)
	if errEmb != nil {
		bootstrap.Logger.Warn("Embedder 初始化失败，tool_recommend 将不可用", "error", errEmb)
	} else if embedder != nil {
		einoEmb := embedding.NewEinoAdapter(embedder)
		indexer, errIdx := einoext.NewCatalogIndexer(ctx, cfg.Tools.Recommend, bootstrap.VectorStore, einoEmb)
		if errIdx != nil {
			bootstrap.Logger.Warn("工具目录索引初始化失败，tool_recommend 将不可用", "error", errIdx)
		} else {
			if errSeed := workflow.IndexCatalog(ctx, indexer, workflow.DefaultCatalog()); errSeed != nil {
				bootstrap.Logger.Warn("工具目录种子写入失败", "error", errSeed)
			}
			catalogRetriever, err = einoext.NewCatalogRetriever(ctx, cfg.Tools.Recommend, bootstrap.VectorStore, einoEmb)
			if err != nil {
				bootstrap.Logger.Warn("工具目录检索器初始化失败，tool_recommend 将不可用", "error", err)
				catalogRetriever = nil
			}
		}
	}

	deps := workflow.Deps{
		ChatModel:        chatModel,
		CatalogRetriever: catalogRetriever,
		Secrets:          bootstrap.Secrets,
	}
	if cfg != nil {
		deps.ResearchCredentialKey = cfg.Tools.ResearchCredentialKey
		deps.ResearchSources = cfg.Tools.ResearchSources
	}
	if err := workflow.RegisterAll(ctx, registry, deps); err != nil {
		return nil, fmt.Errorf("注册子工作流failed: %w", err)
	}

	historyWindow := 0
	decideTimeout := time.Duration(0)
	toolTimeout := time.Duration(0)
	maxToolCalls := 0
	if cfg != nil {
		historyWindow = cfg.Orchestrator.HistoryWindow
		decideTimeout = parseDuration(cfg.Orchestrator.DecideTimeout, 0)
		toolTimeout = parseDuration(cfg.Orchestrator.ToolTimeout, 0)
		maxToolCalls = cfg.Orchestrator.MaxToolCalls
	}
	engine := decision.NewEngine(bootstrap.LLMClient, llm.GenerateOptions{Temperature: 0.3, MaxTokens: 4096}, decideTimeout)
	exec := executor.NewExecutor(registry, toolTimeout)
	exec.SetMaxCalls(utils.DefaultInt(maxToolCalls, 5))
	node := orchestrator.NewNode(prompt.NewBuilder(historyWindow), engine, exec, registry, manager)

	handler := http.NewHandler(node, manager, registry, bootstrap.Logger)
	router := http.NewRouter(handler, middleware.NewMiddleware())

	if cfg != nil && cfg.API.Middleware.Auth && cfg.API.Middleware.JWTKey != "" {
		timeout := parseDuration(cfg.API.Middleware.JWTTimeout, time.Hour)
		maxRefresh := parseDuration(cfg.API.Middleware.JWTMaxRefresh, time.Hour)
		jwtAuth, errJWT := middleware.NewJWTAuth([]byte(cfg.API.Middleware.JWTKey), timeout, maxRefresh)
		if errJWT != nil {
			bootstrap.Logger.Warn("JWT 初始化失败，将跳过认证", "error", errJWT)
		} else {
			router.SetJWT(jwtAuth)
			bootstrap.Logger.Info("JWT 认证已启用")
		}
	}

	return &App{
		bootstrap: bootstrap,
		router:    router,
	}, nil
}

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	a.bootstrap.Logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与 bootstrap 配置对齐
	output := os.Stdout
	if a.bootstrap.Config != nil && a.bootstrap.Config.Log.File != "" {
		f, err := os.OpenFile(a.bootstrap.Config.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(slog.LevelInfo)
	if a.bootstrap.Config != nil {
		switch a.bootstrap.Config.Log.Level {
		case "debug":
			levelVar.Set(slog.LevelDebug)
		case "warn":
			levelVar.Set(slog.LevelWarn)
		case "error":
			levelVar.Set(slog.LevelError)
		}
	}
	hertzLogger := hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	)
	hlog.SetLogger(hertzLogger)

	// 可选：启用链路追踪（OpenTelemetry）
	if a.bootstrap.Config != nil && a.bootstrap.Config.Monitoring.Tracing.Enable {
		serviceName := utils.CoalesceString(a.bootstrap.Config.Monitoring.Tracing.ServiceName, "agent-orchestrator-api")
		exportEndpoint := utils.CoalesceString(a.bootstrap.Config.Monitoring.Tracing.ExportEndpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
		if exportEndpoint != "" {
			opts := []provider.Option{
				provider.WithServiceName(serviceName),
				provider.WithExportEndpoint(exportEndpoint),
			}
			if a.bootstrap.Config.Monitoring.Tracing.Insecure {
				opts = append(opts, provider.WithInsecure())
			}
			p := provider.NewOpenTelemetryProvider(opts...)
			a.otelProvider = p
			tracerOpt, tracerCfg := hertztracing.NewServerTracer()
			a.hertz = a.router.Build(addr, tracerOpt)
			a.hertz.Use(hertztracing.ServerMiddleware(tracerCfg))
			a.bootstrap.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
		} else {
			a.hertz = a.router.Build(addr)
		}
	} else {
		a.hertz = a.router.Build(addr)
	}
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// parseDuration 解析时长字符串，无效或空时返回 defaultVal
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
