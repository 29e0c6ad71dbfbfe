// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"storefront/internal/pkg/domainevent"
	"storefront/internal/pkg/eventbus"
	"storefront/internal/pkg/httpclient"
	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/metrics"
	"storefront/internal/pkg/mq"
	"storefront/internal/pkg/nacos"
	"storefront/internal/pkg/tracing"
)

// AppCtx 是 RegisterHandlers 拿到的运行时依赖。
type AppCtx struct {
	ServiceName string
	InstanceID  string
	Mux         *http.ServeMux
	Config      *Config
	Nacos       *nacos.Client // 未启用 Nacos 时为 nil
	Tracer      trace.Tracer
	Metrics     *metrics.Metrics
	HTTP        *httpclient.Client
	Resolver    httpclient.Resolver

	mu        sync.Mutex
	workers   []func(ctx context.Context) error
	shutdowns []func(ctx context.Context) error
}

// Go 注册一个后台任务，随服务启动，ctx 在关停时取消。
func (a *AppCtx) Go(worker func(ctx context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.workers = append(a.workers, worker)
}

// OnShutdown 注册清理函数，关停时后进先出执行。
func (a *AppCtx) OnShutdown(fn func(ctx context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shutdowns = append(a.shutdowns, fn)
}

// NewEventBus 创建进程内事件总线：所有事件计入指标并转发到 Kafka。
func (a *AppCtx) NewEventBus() *eventbus.Bus[domainevent.Event] {
	bus := eventbus.New[domainevent.Event]()
	bus.Subscribe(a.Metrics.CountEvent)

	writer := mq.NewKafkaWriter(a.Config.Infra.Kafka.BrokerList(), "")
	bus.Subscribe(mq.NewKafkaEventPublisher(writer).Handle)
	a.OnShutdown(func(context.Context) error { return writer.Close() })
	return bus
}

// Consume 为 topic 注册一个 Kafka 消费者，消费组按服务名区分，随服务启停。
func (a *AppCtx) Consume(topic string, handler mq.MessageHandler) {
	a.consume(topic, a.Config.Infra.Kafka.GroupID+"."+a.ServiceName, handler)
}

// Broadcast 与 Consume 相同，但每个实例独占一个消费组，所有实例都会收到全部消息。
func (a *AppCtx) Broadcast(topic string, handler mq.MessageHandler) {
	a.consume(topic, a.Config.Infra.Kafka.GroupID+"."+a.InstanceID, handler)
}

func (a *AppCtx) consume(topic, groupID string, handler mq.MessageHandler) {
	reader := mq.NewKafkaReader(a.Config.Infra.Kafka.BrokerList(), topic, groupID)
	consumer := mq.NewConsumer(reader, topic, handler)
	a.Go(func(ctx context.Context) error {
		consumer.Start(ctx)
		<-ctx.Done()
		return consumer.Stop()
	})
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx *AppCtx) error // 允许每个服务注册自己独特的 HTTP 路由和后台任务
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	cfg := GetCurrentConfig()
	if p, err := strconv.Atoi(getEnv("PORT", "")); err == nil {
		info.Port = p
	}
	if info.Port == 0 {
		info.Port = cfg.App.Port
	}
	logger.Init(info.ServiceName, cfg.App.LogLevel)

	instanceID := info.ServiceName + "-" + uuid.New().String()[:8]

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(tracing.Options{
		ServiceName: info.ServiceName,
		InstanceID:  instanceID,
		Endpoint:    cfg.Infra.Jaeger.Endpoint,
		SampleRatio: cfg.Infra.Jaeger.SampleRatio,
	})
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	appCtx := &AppCtx{
		ServiceName: info.ServiceName,
		InstanceID:  instanceID,
		Mux:         http.NewServeMux(),
		Config:      cfg,
		Tracer:      otel.Tracer(info.ServiceName),
		Metrics:     metrics.New(info.ServiceName),
	}

	// 2. 服务发现：启用 Nacos 时注册自身并用它解析下游，否则使用静态地址表
	var resolver httpclient.Resolver = httpclient.StaticResolver(cfg.Infra.Services)
	instance := nacos.Instance{Service: info.ServiceName, Port: info.Port, InstanceID: instanceID}
	if cfg.Infra.Nacos.Enabled {
		namingClient, err := nacos.NewNacosClient(cfg.Infra.Nacos.Addrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		if instance.IP, err = outboundIP(); err != nil {
			zlog.Fatal().Err(err).Msg("failed to get outbound IP address")
		}
		if err := namingClient.Register(instance); err != nil {
			zlog.Fatal().Err(err).Msg("failed to register service with nacos")
		}
		appCtx.Nacos = namingClient
		resolver = namingClient
	}
	appCtx.Resolver = resolver
	appCtx.HTTP = httpclient.NewClient(appCtx.Tracer, resolver)

	// 3. 路由
	appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	appCtx.Mux.Handle("/metrics", appCtx.Metrics.Handler())
	if info.RegisterHandlers != nil {
		if err := info.RegisterHandlers(appCtx); err != nil {
			zlog.Fatal().Err(err).Str("service", info.ServiceName).Msg("failed to register handlers")
		}
	}

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           logger.Middleware(appCtx.Metrics.Middleware(appCtx.Mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 4. 运行 HTTP Server 和后台任务，直到收到退出信号
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zlog.Info().Msgf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	for _, worker := range appCtx.workers {
		worker := worker
		g.Go(func() error { return worker(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		zlog.Info().Msgf("Shutting down service %s...", info.ServiceName)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// a. 从 Nacos 注销服务
		if appCtx.Nacos != nil {
			if err := appCtx.Nacos.Deregister(instance); err != nil {
				zlog.Error().Err(err).Msg("Error deregistering from Nacos")
			}
			appCtx.Nacos.Close()
		}
		// b. 关闭 HTTP 服务器
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Err(err).Msg("Error shutting down http server")
		}
		// c. 服务自己注册的清理（后进先出）
		for i := len(appCtx.shutdowns) - 1; i >= 0; i-- {
			if err := appCtx.shutdowns[i](shutdownCtx); err != nil {
				zlog.Error().Err(err).Msg("Error running shutdown hook")
			}
		}
		// d. 关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
		if err := tp.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Err(err).Msg("Error shutting down tracer provider")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		zlog.Error().Err(err).Str("service", info.ServiceName).Msg("Service stopped with error")
		os.Exit(1)
	}
	zlog.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
}

// outboundIP 返回本机用于对外连接的地址，用于注册到 Nacos。
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
