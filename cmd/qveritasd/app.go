package main

import (
	"context"
	"errors"
	"log/slog"

	"QVeritas/internal/audit"
	"QVeritas/internal/compute"
	"QVeritas/internal/config"
	xerrors "QVeritas/internal/errors"
	"QVeritas/internal/job"
	"QVeritas/internal/observability/metrics"
	"QVeritas/internal/proof"
	"QVeritas/internal/signing"
	mysqlstore "QVeritas/internal/storage/mysql"
	redisstore "QVeritas/internal/storage/redis"
	"QVeritas/internal/veritas"
	"QVeritas/pkg/logger"
)

// app 持有一次运行所需的全部组件。
type app struct {
	cfg          *config.Config
	orchestrator *veritas.Orchestrator
	metrics      *metrics.Registry
	exporter     *audit.Exporter

	jobs      *job.Service
	processor *job.Processor

	closers []func() error
	logger  *slog.Logger
}

// newApp 按配置组装存储、签名、引擎与审计导出；withJobs 为 true 时额外
// 构建任务存储、队列与处理器。
func newApp(ctx context.Context, cfg *config.Config, withJobs bool) (_ *app, err error) {
	a := &app{cfg: cfg, metrics: metrics.New(), logger: logger.Named("app")}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	seed, err := cfg.ResolveSeed(nil)
	if err != nil {
		return nil, err
	}
	signer, err := signing.New(cfg.Signing.Scheme)
	if err != nil {
		return nil, err
	}

	var (
		proofStore proof.Store
		computeLog compute.Log
		jobStore   job.Store
	)
	switch cfg.Storage.Driver {
	case "mysql":
		lifetime, err := cfg.ConnMaxLifetime()
		if err != nil {
			return nil, err
		}
		db, err := mysqlstore.Open(ctx, mysqlstore.Config{
			DSN:             cfg.Storage.MySQL.DSN,
			MaxOpenConns:    cfg.Storage.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.MySQL.MaxIdleConns,
			ConnMaxLifetime: lifetime,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		proofStore = mysqlstore.NewProofRepository(db)
		computeLog = mysqlstore.NewComputationLog(db)
		if withJobs {
			if jobStore, err = job.NewMySQLStore(db); err != nil {
				return nil, err
			}
		}
	case "redis":
		client, err := redisstore.NewClient(ctx, redisstore.Config{
			Address:   cfg.Storage.Redis.Address,
			Password:  cfg.Storage.Redis.Password,
			DB:        cfg.Storage.Redis.DB,
			KeyPrefix: cfg.Storage.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		proofStore = redisstore.NewProofStore(client, cfg.Storage.Redis.KeyPrefix)
		computeLog = redisstore.NewComputationLog(client, cfg.Storage.Redis.KeyPrefix)
	case "memory", "":
		proofStore = proof.NewMemoryStore()
		computeLog = compute.NewMemoryLog()
	default:
		return nil, xerrors.New(xerrors.CodeConfiguration, "不支持的存储驱动: "+cfg.Storage.Driver)
	}

	computeEngine, err := compute.NewEngine(seed, compute.WithLog(computeLog))
	if err != nil {
		return nil, err
	}
	proofEngine, err := proof.NewEngine(proofStore)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, proofEngine.Close)

	a.orchestrator, err = veritas.New(signer, computeEngine, proofEngine,
		veritas.WithSecurityLevel(cfg.Engine.SecurityLevel),
		veritas.WithObserver(a.metrics),
	)
	if err != nil {
		return nil, err
	}

	sink, err := audit.NewSink(ctx, cfg.Audit)
	if err != nil {
		return nil, err
	}
	a.exporter = audit.NewExporter(a.orchestrator, sink)

	if withJobs {
		if jobStore == nil {
			// Redis 仅作为证明缓存与队列，任务状态保存在进程内。
			jobStore = job.NewMemoryStore()
		}
		queue, err := newQueue(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.jobs = job.NewService(jobStore, queue, cfg.Queue.MaxRetries)
		a.closers = append(a.closers, a.jobs.Close)
		a.processor = job.NewProcessor(a.orchestrator, jobStore, queue, queue,
			job.WithWorkerCount(cfg.Queue.Workers),
			job.WithObserver(a.metrics),
			job.WithProcessorLogger(logger.Named("job")),
		)
	}

	a.logger.Info("组件初始化完成",
		"seed", seed,
		"security_level", cfg.Engine.SecurityLevel,
		"signing_scheme", signer.Scheme(),
		"storage", cfg.Storage.Driver,
		"audit_sink", cfg.Audit.Sink,
	)
	return a, nil
}

func newQueue(ctx context.Context, cfg *config.Config) (job.Queue, error) {
	switch cfg.Queue.Driver {
	case "redis":
		q, err := job.NewRedisQueue(ctx, job.RedisQueueConfig{
			Address:  cfg.Storage.Redis.Address,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Key:      cfg.Queue.RedisKey,
		})
		if err != nil {
			return nil, err
		}
		return q, nil
	case "rabbitmq":
		q, err := job.NewRabbitMQQueue(job.RabbitMQConfig{
			URL:     cfg.Queue.RabbitMQ.URL,
			Queue:   cfg.Queue.RabbitMQ.Queue,
			Durable: true,
		})
		if err != nil {
			return nil, err
		}
		return q, nil
	case "memory", "":
		return job.NewMemoryQueue(cfg.Queue.Buffer), nil
	default:
		return nil, xerrors.New(xerrors.CodeConfiguration, "不支持的队列驱动: "+cfg.Queue.Driver)
	}
}

// Close 逆序释放资源。
func (a *app) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
