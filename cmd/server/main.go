package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcservers/playersessions/config"
	"github.com/mcservers/playersessions/internal/delivery/api"
	grpcSvc "github.com/mcservers/playersessions/internal/delivery/grpc"
	httpHandler "github.com/mcservers/playersessions/internal/delivery/http"
	"github.com/mcservers/playersessions/internal/delivery/kafka/consumer"
	"github.com/mcservers/playersessions/internal/delivery/kafka/producer"
	redisSub "github.com/mcservers/playersessions/internal/delivery/redis"
	appErrors "github.com/mcservers/playersessions/internal/errors"
	"github.com/mcservers/playersessions/internal/infra/redis"
	"github.com/mcservers/playersessions/internal/metrics"
	"github.com/mcservers/playersessions/internal/repository/memory"
	"github.com/mcservers/playersessions/internal/service"
	pkgKafka "github.com/mcservers/playersessions/pkg/kafka"
	pkgLog "github.com/mcservers/playersessions/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			fmt.Fprintln(os.Stderr, "API_KEY is not set; refusing to start without credentials for the collection API")
		}
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})
	defer func() { _ = l.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	// Session state
	pending := memory.NewPendingRepository(l)
	ssRepo := memory.NewSessionRepository(pending, time.Now, l)

	// Dead-letter producer
	var dl service.DeadLetter
	if cfg.Kafka.Enabled {
		kSyncProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
			ClientID:     "playersessions",
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}
		prod := producer.NewProducer(kSyncProd, l)
		defer func() {
			if err := prod.Close(); err != nil {
				l.Warnf(ctx, "Failed to close Kafka producer: %v", err)
			}
		}()
		dl = prod
	}

	// Initialize services
	apiCli := api.NewClient(cfg.Upload, l)
	ssSvc := service.NewSessionService(ssRepo, pending, m, l)
	uploader := service.NewUploader(pending, apiCli, dl, m, l, cfg.Upload)
	relay := service.NewRelay(ssSvc, uploader, l, cfg.Upload)

	if err := relay.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start relay: %v", err)
	}

	srcCtx, stopSources := context.WithCancel(ctx)
	defer stopSources()

	// Kafka event source
	var cons *consumer.Consumer
	if cfg.Kafka.Enabled {
		kConsGr, err := pkgKafka.NewConsumer(pkgKafka.ConsumerConfig{
			Brokers:  cfg.Kafka.Brokers,
			GroupID:  cfg.Kafka.ConsumerGroupID,
			ClientID: "playersessions",
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka consumer: %v", err)
		}
		cons = consumer.NewConsumer(kConsGr, ssSvc, l)
		if err := cons.Start(srcCtx); err != nil {
			l.Fatalf(ctx, "Failed to start Kafka consumer: %v", err)
		}
	}

	// Redis event source
	var sub *redisSub.Subscriber
	if cfg.Redis.Enabled {
		redisCli, err := redis.Connect(ctx, cfg.Redis, l)
		if err != nil {
			l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
		}
		defer redis.Disconnect(ctx, redisCli, l)

		sub = redisSub.NewSubscriber(redisCli, cfg.Redis.EventsChannel, ssSvc, l)
		if err := sub.Start(srcCtx); err != nil {
			l.Fatalf(ctx, "Failed to start Redis subscriber: %v", err)
		}
	}

	// gRPC health server
	health := grpcSvc.NewHealthService(l)
	lnr, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRpcPort))
	if err != nil {
		l.Fatalf(ctx, "gRPC server failed to listen: %v", err)
	}
	gRpcSrv := grpc.NewServer()
	health.Register(gRpcSrv)

	// HTTP server
	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      httpHandler.NewRouter(httpHandler.NewHTTPHandler(ssSvc, relay, l), reg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Infof(ctx, "gRPC server is listening on port: %d", cfg.Server.GRpcPort)
		return gRpcSrv.Serve(lnr)
	})
	g.Go(func() error {
		l.Infof(ctx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	health.SetServing(ctx, true)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-gctx.Done():
		l.Error(ctx, "A server stopped unexpectedly")
	}

	l.Info(ctx, "Server shutting down...")
	health.Shutdown(ctx)

	// Stop event sources first so nothing is touched after the final drain.
	stopSources()
	if cons != nil {
		if err := cons.Close(); err != nil {
			l.Warnf(ctx, "Failed to close Kafka consumer: %v", err)
		}
	}
	if sub != nil {
		if err := sub.Close(); err != nil {
			l.Warnf(ctx, "Failed to close Redis subscriber: %v", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(ctx, cfg.Server.WriteTimeout)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		l.Warnf(ctx, "HTTP server shutdown: %v", err)
	}

	if err := relay.Stop(ctx); err != nil {
		if errors.Is(err, appErrors.ErrDrainExhausted) {
			l.Warnf(ctx, "Shutdown drain incomplete: %v", err)
		} else {
			l.Errorf(ctx, "Failed to stop relay: %v", err)
		}
	}

	gRpcSrv.GracefulStop()
	if err := g.Wait(); err != nil {
		l.Errorf(ctx, "Server error: %v", err)
	}

	l.Info(ctx, "Server exited")
}
