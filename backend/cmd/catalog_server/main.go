package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"catalogServer/backend/config"
	"catalogServer/backend/internal/cache"
	"catalogServer/backend/internal/catalog"
	"catalogServer/backend/internal/events"
	"catalogServer/backend/internal/httpapi/handlers"
	"catalogServer/backend/internal/httpapi/middleware"
	"catalogServer/backend/internal/lock"
	"catalogServer/backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}

	db, err := gorm.Open(mysql.Open(cfg.Mysql.DSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	// redis 可选：没配就退化为无 presence / 无文档读缓存
	var presence cache.PresenceCache
	var docCache *cache.DocCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		presence = cache.NewRedisPresence(rdb)
		docCache = cache.NewDocCache(rdb)
	}

	broadcaster := events.NewBroadcaster()

	// Kafka 转发可选：在线广播永远开，Kafka 只是给下游的副本
	var relay *events.Relay
	if cfg.Kafka.Enabled {
		kafkaCfg := sarama.NewConfig()
		// SyncProducer 必须开启 Return.Successes
		kafkaCfg.Producer.Return.Successes = true
		kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
		producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaCfg)
		if err != nil {
			log.Fatalf("Failed to connect kafka: %v", err)
		}
		defer producer.Close()
		relay = events.NewRelay(producer, cfg.Kafka.Topic, events.RelayOptions{
			QueueSize:   10_000,
			Workers:     4,
			MaxRetry:    3,
			BaseBackoff: 50 * time.Millisecond,
			MaxBackoff:  1 * time.Second,
		})
		defer relay.Close()
	}
	pub := events.Fanout{Broadcaster: broadcaster, Relay: relay}

	st := store.New(db)
	locks := lock.NewManager(st, pub)

	// 清理器独立于请求流量跑
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go lock.NewSweeper(locks).Run(sweepCtx)

	var inval catalog.Invalidator
	if docCache != nil {
		inval = docCache
	}
	svc := catalog.NewService(st, locks, pub, inval)

	h := &handlers.Handlers{
		Catalog:             svc,
		Locks:               locks,
		Broadcaster:         broadcaster,
		Presence:            presence,
		DocCache:            docCache,
		DefaultLockDuration: time.Duration(cfg.Lock.DefaultDurationMs) * time.Millisecond,
		RefreshInterval:     time.Duration(cfg.Lock.RefreshIntervalMs) * time.Millisecond,
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	api := r.Group("/catalog")
	api.Use(middleware.AuthMiddleware())
	h.Register(api)

	port := cfg.Running.Port
	log.Printf("catalog server listening on :%d", port)
	if err := r.Run(fmt.Sprintf(":%d", port)); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
