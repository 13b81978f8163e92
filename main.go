package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/authedge/authedge/internal/audit"
	"github.com/authedge/authedge/internal/common"
	"github.com/authedge/authedge/internal/config"
	"github.com/authedge/authedge/internal/events"
	"github.com/authedge/authedge/internal/gateway"
	"github.com/authedge/authedge/internal/handlers/api"
	"github.com/authedge/authedge/internal/logindefense"
	"github.com/authedge/authedge/internal/mail"
	"github.com/authedge/authedge/internal/middlewares"
	"github.com/authedge/authedge/internal/oauth"
	"github.com/authedge/authedge/internal/social"
	"github.com/authedge/authedge/internal/sso"
	"github.com/authedge/authedge/internal/store"
	"github.com/authedge/authedge/internal/token"
	"github.com/authedge/authedge/internal/users"
	"github.com/authedge/authedge/model"
	"github.com/authedge/authedge/params"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/redis/v3"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "authedge - authentication and edge security server"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func mustInitDatabase(dbConfig config.MySQLConfig) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dbConfig.Dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   dbConfig.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := db.AutoMigrate(model.Models...); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}

	return db
}

func mustInitRedisStorage(redisCfg config.RedisConfig) *redis.Storage {
	return redis.New(redis.Config{
		URL:           redisCfg.URL,
		PoolSize:      redisCfg.PoolSize,
		IsClusterMode: redisCfg.ClusterMode,
	})
}

func mustInitMailSender(mailCfg config.MailConfig) mail.MailSender {
	switch mailCfg.Backend {
	case "":
		slog.Warn("No mail backend configured, password reset mails will be dropped")
		return mail.NullSender{}
	case "smtp":
		sender, err := mail.NewSMTPMailSender(mail.SMTPConfig{
			Host:     mailCfg.SMTP.Host,
			Port:     mailCfg.SMTP.Port,
			Username: mailCfg.SMTP.Username,
			Password: mailCfg.SMTP.Password,
			CAFile:   mailCfg.SMTP.CAFile,
		}, mailCfg.From)
		if err != nil {
			slog.Error("Failed to initialize SMTP mail sender", "error", err)
			os.Exit(1)
		}
		return sender
	default:
		slog.Error("Unsupported mail backend", "backend", mailCfg.Backend)
		os.Exit(1)
		return nil
	}
}

func mustInitSocialProviders(cfg *config.Config) map[string]social.Provider {
	providers := make(map[string]social.Provider)
	for providerName, providerCfg := range cfg.AuthProviders.OAuth {
		callbackURL, _ := url.JoinPath(cfg.BaseURL, "oauth", providerName, "callback")
		switch providerName {
		case "google":
			providers[providerName] = social.NewGoogleProvider(callbackURL, providerCfg.ClientID, providerCfg.ClientSecret)
		default:
			slog.Error("Unsupported social login provider", "provider", providerName)
			os.Exit(1)
		}
	}
	return providers
}

func setupAPIRoutes(
	router fiber.Router,
	limiterStorage fiber.Storage,
	authHandler *api.AuthHandler,
	oauthHandler *api.OAuthHandler,
	ssoHandler *api.SSOHandler,
	adminHandler *api.AdminHandler) {

	router.Get("/.well-known/oauth-authorization-server", oauthHandler.GetDiscovery)
	router.Get("/.well-known/openid-configuration", oauthHandler.GetDiscovery)

	authGroup := router.Group("/auth", limiter.New(limiter.Config{
		Max:        params.AuthRateLimitMaxRequests,
		Expiration: params.AuthRateLimitWindow,
		Storage:    limiterStorage,
	}))
	authGroup.Post("/login", authHandler.PostLogin)
	authGroup.Post("/signup", authHandler.PostSignup)
	authGroup.Post("/refresh", authHandler.PostRefresh)
	authGroup.Post("/logout", authHandler.PostLogout)
	authGroup.Post("/validate", authHandler.PostValidate)
	authGroup.Post("/password-reset", authHandler.PostPasswordReset)
	authGroup.Post("/password-reset/confirm", authHandler.PostPasswordResetConfirm)
	authGroup.Get("/me", authHandler.GetMe)

	router.Get("/oauth/authorize", oauthHandler.GetAuthorize)
	router.Post("/oauth/token", oauthHandler.PostToken)
	router.Post("/oauth/revoke", oauthHandler.PostRevoke)
	router.Get("/oauth/userinfo", oauthHandler.GetUserinfo)

	router.Post("/sso/upgrade", ssoHandler.PostUpgrade)
	router.Post("/sso/validate", ssoHandler.PostValidate)
	router.Post("/sso/register-app", ssoHandler.PostRegisterApp)
	router.Get("/sso/session", ssoHandler.GetSession)
	router.Post("/sso/logout", ssoHandler.PostLogout)

	adminGroup := router.Group("/admin", adminHandler.RequireAdminKey)
	adminGroup.Get("/defense/stats", adminHandler.GetDefenseStats)
	adminGroup.Get("/accounts/:identity/lock", adminHandler.GetLockInfo)
	adminGroup.Post("/accounts/:identity/lock", adminHandler.PostLock)
	adminGroup.Post("/accounts/:identity/unlock", adminHandler.PostUnlock)
	adminGroup.Post("/clients", adminHandler.PostRegisterClient)
	adminGroup.Delete("/clients/:clientId", adminHandler.DeleteClient)
}

func run(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}

	mustInitLogger(cfg.Debug || ctx.IsSet(debugFlag.Name))

	db := mustInitDatabase(cfg.MySQL)
	redisStorage := mustInitRedisStorage(cfg.Redis)
	cacheStorage := store.NewRedisStorage(redisStorage.Conn())
	mailSender := mustInitMailSender(cfg.Mail)
	socialProviders := mustInitSocialProviders(cfg)

	audit.Initialize(audit.NewAuditEventRepository(db))

	var eventSink events.Sink
	if cfg.EventBus.Channel != "" {
		eventSink = events.NewRedisSink(redisStorage.Conn(), cfg.EventBus.Channel)
	}
	eventSink = events.OrDefault(eventSink)

	// repositories
	var (
		userRepo   = users.NewUserRepository(db)
		clientRepo = oauth.NewClientRepository(db)
	)

	// services
	var (
		userService    = users.NewUserService(userRepo)
		tokenService   = token.NewService(cfg.Issuer, []byte(cfg.MasterKey), cacheStorage)
		codeManager    = oauth.NewCodeManager(cacheStorage)
		clientRegistry = oauth.NewClientRegistry(clientRepo)
		guard          = logindefense.NewGuard(cacheStorage, eventSink)
		ssoManager     = sso.NewManager(tokenService, cacheStorage)
	)

	gw := gateway.New(tokenService, gateway.Config{
		Routes:          cfg.Gateway.Routes,
		PublicPrefixes:  cfg.Gateway.PublicPrefixes,
		ConnectTimeout:  params.GatewayConnectTimeout,
		ResponseTimeout: params.GatewayResponseTimeout,
	})

	// handlers
	var (
		authHandler  = api.NewAuthHandler(userService, tokenService, guard, mailSender, cfg.BaseURL)
		oauthHandler = api.NewOAuthHandler(clientRegistry, codeManager, tokenService, userService, socialProviders, cfg.Issuer, cfg.BaseURL)
		ssoHandler   = api.NewSSOHandler(ssoManager)
		adminHandler = api.NewAdminHandler(guard, clientRegistry, cfg.AdminKey)
	)

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.ErrorHandler,
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	setupAPIRoutes(router, redisStorage, authHandler, oauthHandler, ssoHandler, adminHandler)

	// everything behind the gateway goes through the auth filter
	router.All("/gateway/:service/*", gw.Authenticate, gw.Proxy)

	healthCheckCtx, term := context.WithCancel(ctx.Context)
	done := make(chan struct{})
	go common.StartHealthCheckServer(healthCheckCtx, done, redisStorage.Conn(), db)
	defer func() {
		term()
		<-done
	}()
	return router.Listen(cfg.ListenAddr)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
