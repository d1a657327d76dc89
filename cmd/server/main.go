package main

import (
	"context"
	"flag"
	"time"

	"github.com/billcycle/billcycle/internal/cache"
	"github.com/billcycle/billcycle/internal/config"
	"github.com/billcycle/billcycle/internal/idgen"
	"github.com/billcycle/billcycle/internal/logger"
	"github.com/billcycle/billcycle/internal/postgres"
	"github.com/billcycle/billcycle/internal/publisher"
	"github.com/billcycle/billcycle/internal/pubsub"
	pubsubMemory "github.com/billcycle/billcycle/internal/pubsub/memory"
	"github.com/billcycle/billcycle/internal/repository"
	"github.com/billcycle/billcycle/internal/service"
	"github.com/billcycle/billcycle/internal/types"
	"go.uber.org/fx"
)

var (
	runBatch    = flag.Bool("run-batch", false, "run the billing batch and exit")
	cutoffDate  = flag.String("cutoff", "", "billing cutoff date as YYYY-MM-DD, defaults to today")
	markOverdue = flag.Bool("mark-overdue", false, "promote past-due open items and exit")
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	flag.Parse()

	app := fx.New(
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Cache
			provideCache,

			// Postgres
			postgres.NewDB,
			providePostgresClient,

			// PubSub
			providePubSub,
			providePublisher,

			// Event Publisher
			publisher.NewEventPublisher,

			// Repositories
			provideRepositoryParams,
			repository.NewCustomerRepository,
			repository.NewProductRepository,
			repository.NewContractRepository,
			repository.NewSubscriptionRepository,
			repository.NewDueScheduleRepository,
			repository.NewInvoiceRepository,
			repository.NewOpenItemRepository,

			// Identifier generation
			service.NewNumberChecker,
			idgen.NewGenerator,

			// Services
			service.NewServiceParams,
			service.NewScheduleService,
			service.NewInvoiceService,
			service.NewOpenItemService,
			service.NewBillingService,
			service.NewSubscriptionService,
		),
		fx.Invoke(startWorker),
	)
	app.Run()
}

func provideCache() cache.Cache {
	return cache.NewInMemoryCache()
}

func providePostgresClient(db *postgres.DB) postgres.IClient {
	return db
}

func providePubSub(log *logger.Logger) pubsub.PubSub {
	return pubsubMemory.NewPubSub(log)
}

func providePublisher(ps pubsub.PubSub) pubsub.Publisher {
	return ps
}

func provideRepositoryParams(db postgres.IClient, log *logger.Logger, c cache.Cache) repository.Params {
	return repository.Params{
		DB:     db,
		Logger: log,
		Cache:  c,
	}
}

func startWorker(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Configuration,
	db *postgres.DB,
	ps pubsub.PubSub,
	scheduleService service.ScheduleService,
	billingService service.BillingService,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if *runBatch || *markOverdue {
				go runOnce(billingService, shutdowner, log)
				return nil
			}
			return consumeLifecycleEvents(cfg, ps, scheduleService, log)
		},
		OnStop: func(ctx context.Context) error {
			if err := ps.Close(); err != nil {
				log.Errorw("error closing pubsub", "error", err)
			}
			db.Close()
			return nil
		},
	})
}

// runOnce executes the requested batch operations and shuts the process down.
func runOnce(billingService service.BillingService, shutdowner fx.Shutdowner, log *logger.Logger) {
	ctx := defaultContext()

	if *runBatch {
		cutoff, err := resolveCutoff()
		if err != nil {
			log.Fatalw("invalid cutoff date", "cutoff", *cutoffDate, "error", err)
		}
		result, err := billingService.RunBillingBatch(ctx, cutoff)
		if err != nil {
			log.Fatalw("billing batch failed", "error", err)
		}
		log.Infow("billing batch finished",
			"batch_id", result.BatchID,
			"invoices_created", result.InvoicesCreated,
			"periods_processed", result.PeriodsProcessed,
			"failures", len(result.Failures),
		)
	}

	if *markOverdue {
		sweep, err := billingService.MarkOverdueOpenItems(ctx, time.Now().UTC())
		if err != nil {
			log.Fatalw("overdue sweep failed", "error", err)
		}
		log.Infow("overdue sweep finished", "items_marked", sweep.ItemsMarked)
	}

	if err := shutdowner.Shutdown(); err != nil {
		log.Errorw("shutdown failed", "error", err)
	}
}

// consumeLifecycleEvents feeds subscription lifecycle events into the period
// scheduler. Delivery is at-least-once; the scheduler handlers are idempotent.
func consumeLifecycleEvents(
	cfg *config.Configuration,
	ps pubsub.PubSub,
	scheduleService service.ScheduleService,
	log *logger.Logger,
) error {
	msgs, err := ps.Subscribe(context.Background(), cfg.Event.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			event, err := publisher.UnmarshalEvent(msg)
			if err != nil {
				log.Errorw("dropping malformed lifecycle event", "message_id", msg.UUID, "error", err)
				msg.Ack()
				continue
			}

			ctx := types.SetTenantID(context.Background(), event.TenantID)
			ctx = types.SetUserID(ctx, types.DefaultUserID)
			if err := scheduleService.ProcessLifecycleEvent(ctx, event); err != nil {
				log.Errorw("lifecycle event handling failed",
					"event_id", event.ID,
					"event_type", event.EventType,
					"subscription_id", event.SubscriptionID,
					"error", err,
				)
			}
			msg.Ack()
		}
	}()
	return nil
}

func resolveCutoff() (time.Time, error) {
	if *cutoffDate == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse("2006-01-02", *cutoffDate)
}

func defaultContext() context.Context {
	ctx := types.SetTenantID(context.Background(), types.DefaultTenantID)
	return types.SetUserID(ctx, types.DefaultUserID)
}
