package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/example/parfum-commerce/internal/api"
	"github.com/example/parfum-commerce/internal/auth"
	"github.com/example/parfum-commerce/internal/command"
	"github.com/example/parfum-commerce/internal/config"
	"github.com/example/parfum-commerce/internal/domain/analytics"
	"github.com/example/parfum-commerce/internal/domain/cart"
	"github.com/example/parfum-commerce/internal/domain/inventory"
	"github.com/example/parfum-commerce/internal/domain/order"
	"github.com/example/parfum-commerce/internal/domain/product"
	"github.com/example/parfum-commerce/internal/domain/promotion"
	"github.com/example/parfum-commerce/internal/domain/recovery"
	"github.com/example/parfum-commerce/internal/email"
	"github.com/example/parfum-commerce/internal/infrastructure/kafka"
	"github.com/example/parfum-commerce/internal/infrastructure/redisstore"
	"github.com/example/parfum-commerce/internal/infrastructure/store"
	"github.com/example/parfum-commerce/internal/notification"
	"github.com/example/parfum-commerce/internal/realtime"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("[API] %v", err)
	}
	orderCfg, err := cfg.Order.EngineConfig()
	if err != nil {
		log.Fatalf("[API] %v", err)
	}
	recoveryCfg, err := cfg.Recovery.EngineConfig()
	if err != nil {
		log.Fatalf("[API] %v", err)
	}

	log.Println("[API] ========================================")
	log.Println("[API] Parfum Commerce")
	log.Println("[API] ========================================")

	mailer := email.NewService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From).
		WithTimeout(cfg.SMTP.Timeout).
		WithAuth(cfg.SMTP.Username, cfg.SMTP.Password)
	recoveryEngine := recovery.NewEngine(recoveryCfg, notification.NewRecoveryMailer(mailer, cfg.Recovery.CartURL))
	hub := realtime.NewHub(cfg.Server.AllowedOrigins...)

	var wg sync.WaitGroup

	// Event delivery: Kafka when brokers are configured, otherwise in-process
	publishers := store.Publishers{hub}
	if cfg.Kafka.Enabled() {
		log.Printf("[API] Kafka: %v (topic %s)", cfg.Kafka.Brokers, cfg.Kafka.Topic)
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		publishers = append(publishers, producer)

		// order confirmations are sent by the notifier service
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup)
		defer consumer.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Consume(ctx, recoveryEngine.HandleEvent); err != nil && ctx.Err() == nil {
				log.Printf("[API] Recovery consumer error: %v", err)
			}
		}()
	} else {
		log.Println("[API] Kafka disabled, using in-process event bus")
		// confirmations are mailed from a queue, off the request path
		notifier := store.NewAsyncHandler("Notifier", notification.NewHandler(mailer).HandleEvent, cfg.SMTP.QueueSize)
		wg.Add(1)
		go func() {
			defer wg.Done()
			notifier.Run(ctx)
		}()
		publishers = append(publishers, store.NewLocalBus(
			recoveryEngine.HandleEvent,
			notifier.Handle,
		))
	}

	var eventStore store.EventStoreInterface
	if cfg.Database.URL != "" {
		db, err := store.ConnectPostgres(cfg.Database.URL)
		if err != nil {
			log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
		}
		defer db.Close()
		pg := store.NewPostgresEventStore(db, publishers)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("[API] Failed to create schema: %v", err)
		}
		log.Println("[API] Event store: PostgreSQL")
		eventStore = pg
		replayEvents(ctx, eventStore, recoveryEngine)
	} else {
		log.Println("[API] Event store: in-memory")
		eventStore = store.NewEventStore(publishers)
	}

	recoveryEngine.WithEventStore(eventStore)

	var stocks inventory.Store
	if cfg.Redis.Addr != "" {
		client, err := redisstore.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("[API] Failed to connect to Redis: %v", err)
		}
		defer client.Close()
		log.Printf("[API] Stock store: Redis %s", cfg.Redis.Addr)
		stocks = redisstore.NewStockStore(client, cfg.Redis.KeyPrefix)
	} else if cfg.Database.URL != "" {
		memory, err := inventory.RestoreMemoryStore(eventStore.GetEventsByType(inventory.AggregateType))
		if err != nil {
			log.Fatalf("[API] Failed to restore stock: %v", err)
		}
		log.Println("[API] Stock store: in-memory, rebuilt from events")
		stocks = memory
	} else {
		log.Println("[API] Stock store: in-memory")
		stocks = inventory.NewMemoryStore()
	}

	// Initialize domain services
	productSvc := product.NewService(eventStore)
	cartSvc := cart.NewService(eventStore)
	inventorySvc := inventory.NewService(stocks, eventStore)
	promoSvc := promotion.NewService().WithEventStore(eventStore)
	if _, err := promoSvc.Restore(ctx); err != nil {
		log.Fatalf("[API] Failed to restore promo codes: %v", err)
	}
	orderSvc := order.NewService(eventStore, inventorySvc, promoSvc, orderCfg)
	analyticsEngine := analytics.NewEngine(cfg.Analytics.CheckoutPath)

	handlers := api.NewHandlers(api.Services{
		Commands:  command.NewHandler(productSvc, cartSvc, orderSvc, inventorySvc),
		Products:  productSvc,
		Carts:     cartSvc,
		Orders:    orderSvc,
		Inventory: inventorySvc,
		Promos:    promoSvc,
		Recovery:  recoveryEngine,
		Analytics: analyticsEngine,
	})
	router := api.NewRouter(api.RouterConfig{
		Handlers:   handlers,
		JWTService: auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, 15*time.Minute),
		Events:     hub,
		WebDir:     cfg.Server.WebDir,
	})

	// Background sweepers
	wg.Add(2)
	go func() {
		defer wg.Done()
		recoveryEngine.Run(ctx, cfg.Recovery.SweepInterval)
	}()
	go func() {
		defer wg.Done()
		expireSessions(ctx, analyticsEngine, cfg.Analytics.SweepInterval, cfg.Analytics.IdleTimeout, cfg.Analytics.Retention)
	}()

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[API] Server started on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[API] Shutdown error: %v", err)
	}

	wg.Wait()
}

// replayEvents rebuilds the abandoned cart state, recovery mails and manual
// recoveries included, from the stored history
func replayEvents(ctx context.Context, eventStore store.EventStoreInterface, engine *recovery.Engine) {
	events := eventStore.GetAllEvents()
	log.Printf("[API] Replaying %d events from event store...", len(events))

	for _, event := range events {
		data, err := event.MarshalJSON()
		if err != nil {
			log.Printf("[API] Error encoding event %s: %v", event.ID, err)
			continue
		}
		if err := engine.HandleEvent(ctx, []byte(event.AggregateID), data); err != nil {
			log.Printf("[API] Error replaying event %s: %v", event.ID, err)
		}
	}
	log.Println("[API] Event replay completed")
}

// expireSessions ends analytics sessions that went quiet and drops ended
// ones past retention
func expireSessions(ctx context.Context, engine *analytics.Engine, interval, idle, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := engine.ExpireIdle(idle); n > 0 {
				log.Printf("[API] Expired %d idle analytics sessions", n)
			}
			if n := engine.PruneEnded(retention); n > 0 {
				log.Printf("[API] Pruned %d ended analytics sessions", n)
			}
		}
	}
}
