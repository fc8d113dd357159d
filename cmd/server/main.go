package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"fleettrack/internal/audit"
	auditkafka "fleettrack/internal/audit/kafka"
	"fleettrack/internal/authz"
	"fleettrack/internal/feature"
	"fleettrack/internal/fleet"
	"fleettrack/internal/identity"
	"fleettrack/internal/org"
	"fleettrack/internal/permission"
	"fleettrack/internal/platform/config"
	"fleettrack/internal/platform/httpserver"
	"fleettrack/internal/platform/logger"
	"fleettrack/internal/platform/metrics"
	platformredis "fleettrack/internal/platform/redis"
	"fleettrack/internal/rbac"
	transporthttp "fleettrack/internal/transport/http"
	"fleettrack/pkg/platform/tx"
	"fleettrack/pkg/requestcontext"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.ParseLevel(cfg.LogLevel))

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Stores: Postgres when DATABASE_URL is set, in-memory otherwise.
	var (
		auditStore audit.Store
		userStore  identity.Store
		unitStore  org.Store
		featStore  feature.Store
		roleStore  rbac.RoleStore
		grantStore rbac.GrantStore
		permStore  permission.Store
		truckStore fleet.Store
		txr        tx.Runner = tx.NopRunner{}
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}

		auditStore = audit.NewPostgresStore(db)
		userStore = identity.NewPostgresStore(db)
		unitStore = org.NewPostgresStore(db)
		featStore = feature.NewPostgresStore(db)
		roleStore = rbac.NewPostgresRoleStore(db)
		grantStore = rbac.NewPostgresGrantStore(db)
		permStore = permission.NewPostgresStore(db)
		truckStore = fleet.NewPostgresStore(db)
		txr = tx.NewSQLRunner(db)
		log.Info("using postgres stores")
	} else {
		auditStore = audit.NewInMemoryStore()
		userStore = identity.NewInMemoryStore()
		unitStore = org.NewInMemoryStore()
		featStore = feature.NewInMemoryStore()
		roleStore = rbac.NewInMemoryRoleStore()
		grantStore = rbac.NewInMemoryGrantStore()
		permStore = permission.NewInMemoryStore()
		truckStore = fleet.NewInMemoryStore()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	// Audit pipeline: queued recorder, background worker, optional Kafka sink.
	recorderOpts := []audit.Option{
		audit.WithQueue(cfg.AuditQueueSize),
		audit.WithMetrics(m),
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := auditkafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer publisher.Close()
		recorderOpts = append(recorderOpts, audit.WithSink(publisher))
		log.Info("audit entries mirrored to kafka", "topic", cfg.KafkaTopic)
	}
	recorder := audit.NewRecorder(auditStore, log, recorderOpts...)

	// Token revocation: Redis when configured, process-local otherwise.
	var revocations identity.RevocationList
	redisClient, err := platformredis.New(ctx, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		revocations = identity.NewRedisRevocationList(redisClient)
	}

	tokens := identity.NewTokenService([]byte(cfg.JWTSigningKey), cfg.JWTIssuer, cfg.AccessTokenTTL)
	identitySvc := identity.NewService(userStore, tokens, revocations, recorder, m)
	orgSvc := org.NewService(unitStore, recorder)
	featSvc := feature.NewService(featStore, recorder)
	rbacSvc := rbac.NewService(roleStore, grantStore, unitStore, recorder, txr)
	permSvc := permission.NewService(permStore, featStore, roleStore, recorder, txr)
	engine := authz.NewEngine(rbacSvc, featSvc, permSvc, m)
	fleetSvc := fleet.NewService(truckStore, unitStore, engine, rbacSvc, recorder)

	if err := seed(ctx, log, identitySvc, rbacSvc, featSvc, featStore, userStore); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	router := transporthttp.NewRouter(log, m, transporthttp.Services{
		Identity:    identitySvc,
		Org:         orgSvc,
		Features:    featSvc,
		RBAC:        rbacSvc,
		Permissions: permSvc,
		Fleet:       fleetSvc,
		Audit:       recorder,
		Engine:      engine,
	})
	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return audit.NewWorker(recorder).Run(groupCtx)
	})
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

// seed provisions the built-in features, the administrator role, and a
// bootstrap admin account on first start. Idempotent: existing records are
// left alone.
func seed(ctx context.Context, log *slog.Logger, identitySvc *identity.Service, rbacSvc *rbac.Service, featSvc *feature.Service, featStore feature.Store, userStore identity.Store) error {
	ctx = requestcontext.WithUserID(ctx, uuid.Nil)

	builtins := map[string]string{
		fleet.FeatureCode:                   "Truck registry",
		transporthttp.FeatureAdministration: "Administration",
		transporthttp.FeatureAuditTrail:     "Audit trail",
	}
	for code, name := range builtins {
		if _, err := featStore.FindByCode(ctx, code); err == nil {
			continue
		}
		if _, err := featSvc.CreateFeature(ctx, code, name); err != nil {
			return err
		}
	}

	var adminRole *rbac.Role
	roles, err := rbacSvc.ListRoles(ctx)
	if err != nil {
		return err
	}
	for _, role := range roles {
		if role.IsAdmin() {
			adminRole = role
			break
		}
	}
	if adminRole == nil {
		adminRole, err = rbacSvc.CreateRole(ctx, "Administrator", rbac.AdminLevel, rbac.ScopeGlobal)
		if err != nil {
			return err
		}
	}

	adminEmail := os.Getenv("BOOTSTRAP_ADMIN_EMAIL")
	adminPassword := os.Getenv("BOOTSTRAP_ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		return nil
	}
	if _, err := userStore.FindByEmail(ctx, adminEmail); err == nil {
		return nil
	}
	admin, err := identitySvc.CreateUser(ctx, adminEmail, "Administrator", adminPassword)
	if err != nil {
		return err
	}
	if _, err := rbacSvc.Grant(ctx, admin.ID, adminRole.ID, nil); err != nil {
		return err
	}
	log.Info("bootstrap administrator created", "email", adminEmail)
	return nil
}
