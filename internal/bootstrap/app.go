package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"discussion-room/internal/agenda"
	httpHandler "discussion-room/internal/handler/http"
	wsHandler "discussion-room/internal/handler/websocket"
	"discussion-room/internal/hub"
	gormpersistence "discussion-room/internal/infra/persistence/gorm"
	"discussion-room/internal/infra/setup"
	redisstate "discussion-room/internal/infra/state/redis"
	"discussion-room/internal/middleware"
	"discussion-room/internal/repository"
	"discussion-room/internal/service"
	"discussion-room/internal/tasks"
	"discussion-room/internal/worker"
)

// App 结构体包含应用的所有组件和配置
type App struct {
	Config       *Config
	Log          *logrus.Logger
	DB           *gorm.DB // 仅 mysql/sqlite 后端非 nil
	RedisClient  *redis.Client
	Hub          *hub.Hub
	WorkerServer *worker.WorkerServer
	Scheduler    *asynq.Scheduler
	HttpServer   *http.Server

	relayCancel  context.CancelFunc
	sweepEntryID string // 清理任务未启用时为空
	started      bool
}

// NewLogger 按配置创建 logger，并让 logrus 标准 logger 使用相同的格式和级别
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	var formatter logrus.Formatter = &logrus.TextFormatter{FullTimestamp: true, ForceColors: true}
	if cfg.AppEnv == "production" {
		formatter = &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano}
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}

	for _, l := range []*logrus.Logger{log, logrus.StandardLogger()} {
		l.SetFormatter(formatter)
		l.SetLevel(level)
		l.SetOutput(os.Stdout)
	}
	return log
}

// NewApp 创建并初始化应用的所有组件
func NewApp(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	log := NewLogger(cfg)
	log.Infof("Logger initialized (Level: %s, Env: %s)", log.GetLevel(), cfg.AppEnv)

	// 1. 基础设施
	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	app := &App{Config: cfg, Log: log, RedisClient: redisClient}

	store, err := app.newRoomStore()
	if err != nil {
		app.closeStores()
		return nil, err
	}
	log.WithField("backend", cfg.StoreBackend).Info("Room store initialized")

	// 2. Services
	roomService := service.NewRoomService(store)
	agendaClient, err := agenda.NewClient(context.Background(), agenda.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.AgendaTimeout,
	})
	if err != nil {
		app.closeStores()
		return nil, fmt.Errorf("failed to init agenda client: %w", err)
	}
	agendaService := service.NewAgendaService(agendaClient)

	// 3. Hub 以及可选的跨实例广播
	app.Hub = hub.NewHub()
	if cfg.BroadcastRelay {
		relayCtx, cancel := context.WithCancel(context.Background())
		relay := hub.NewRedisRelay(redisClient, cfg.KeyPrefix)
		if err := relay.Subscribe(relayCtx, app.Hub); err != nil {
			cancel()
			app.closeStores()
			return nil, fmt.Errorf("failed to start broadcast relay: %w", err)
		}
		app.Hub.SetRelay(relay)
		app.relayCancel = cancel
		log.Info("Broadcast relay enabled")
	}

	// 4. 后台清理任务
	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	app.WorkerServer = worker.NewWorkerServer(redisClientOpt, worker.NewRoomSweepHandler(roomService, app.Hub), log)
	app.Scheduler = asynq.NewScheduler(redisClientOpt, &asynq.SchedulerOpts{Location: time.UTC})
	if err := app.registerPeriodicTasks(); err != nil {
		app.closeStores()
		return nil, err
	}

	// 5. Handlers 和路由
	router := newRouter(cfg, log, redisClient,
		httpHandler.NewRoomHandler(roomService),
		httpHandler.NewAgendaHandler(agendaService),
		wsHandler.NewWebSocketHandler(app.Hub, wsHandler.NewEventRouter(app.Hub, roomService), cfg.CORSAllowedOrigins),
	)
	app.HttpServer = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Application assembled successfully")
	return app, nil
}

// newRoomStore 根据 STORE_BACKEND 选择房间存储
func (a *App) newRoomStore() (repository.RoomStore, error) {
	cfg := a.Config
	if cfg.StoreBackend == StoreRedis {
		return redisstate.NewRedisRoomStore(a.RedisClient, cfg.KeyPrefix, cfg.TxMaxRetries), nil
	}

	driver := setup.DriverMySQL
	if cfg.StoreBackend == StoreSQLite {
		driver = setup.DriverSQLite
	}
	db, err := setup.InitDB(setup.DBOptions{
		Driver:     driver,
		User:       cfg.DBUser,
		Password:   cfg.DBPassword,
		Host:       cfg.DBHost,
		Port:       cfg.DBPort,
		Name:       cfg.DBName,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	a.DB = db
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	return gormpersistence.NewGormRoomStore(db, cfg.TxMaxRetries), nil
}

func newRouter(cfg *Config, log *logrus.Logger, redisClient *redis.Client,
	rooms *httpHandler.RoomHandler, agendas *httpHandler.AgendaHandler, ws *wsHandler.WebSocketHandler) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(log))
	router.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))

	api := router.Group("/api")
	api.Use(middleware.RateLimit(redisClient, cfg.KeyPrefix, cfg.RateLimitMax, cfg.RateLimitWindow))
	{
		api.POST("/rooms", rooms.CreateRoom)
		api.POST("/rooms/join", rooms.JoinRoom)
		api.POST("/rooms/settings", rooms.UpdateSettings)
		api.GET("/rooms/:roomId", rooms.GetRoom)
		api.POST("/agenda", agendas.GenerateAgenda)
	}
	router.GET("/ws", ws.HandleConnection)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "X-Requested-With"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func (a *App) registerPeriodicTasks() error {
	if a.Config.RoomMaxAge == 0 {
		a.Log.Info("ROOM_MAX_AGE not set, room sweep disabled")
		return nil
	}
	task, err := tasks.NewRoomSweepTask(a.Config.RoomMaxAge)
	if err != nil {
		return fmt.Errorf("failed to create room sweep task: %w", err)
	}
	entryID, err := a.Scheduler.Register(a.Config.RoomSweepSchedule, task, asynq.Queue("default"))
	if err != nil {
		return fmt.Errorf("could not register room sweep task with schedule %q: %w", a.Config.RoomSweepSchedule, err)
	}
	a.sweepEntryID = entryID
	a.Log.Infof("Room sweep registered with schedule '%s' (EntryID: %s)", a.Config.RoomSweepSchedule, entryID)
	return nil
}

// Start 启动 Hub、后台任务和 HTTP 服务器。HTTP 服务器意外退出时 errCh 会收到错误。
func (a *App) Start() (<-chan error, error) {
	go a.Hub.Run()
	a.Log.Info("Hub routine started")

	if err := a.WorkerServer.Start(); err != nil {
		return nil, err
	}
	if err := a.Scheduler.Start(); err != nil {
		a.WorkerServer.Shutdown()
		return nil, fmt.Errorf("could not start scheduler: %w", err)
	}
	a.started = true
	a.Log.Info("Asynq worker server and scheduler started")

	errCh := make(chan error, 1)
	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
	return errCh, nil
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 停止接收新请求
	if a.HttpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.HttpServer.Shutdown(ctx); err != nil {
			a.Log.Errorf("Error shutting down HTTP server: %v", err)
		}
	}

	// 2. 断开所有 WebSocket 连接并停止广播订阅
	if a.Hub != nil {
		a.Hub.Stop()
	}
	if a.relayCancel != nil {
		a.relayCancel()
	}

	// 3. 后台任务
	if a.started {
		a.Scheduler.Shutdown()
		a.WorkerServer.Shutdown()
	}

	a.closeStores()
	a.Log.Info("Application shutdown complete.")
}

func (a *App) closeStores() {
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}
	if a.DB != nil {
		if err := setup.CloseDB(a.DB); err != nil {
			a.Log.Errorf("Error closing database connection: %v", err)
		}
	}
}
