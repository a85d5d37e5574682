package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/witos44/UserAuthSystem/app/controller"
	authgrpc "github.com/witos44/UserAuthSystem/app/grpc"
	"github.com/witos44/UserAuthSystem/app/middleware"
	"github.com/witos44/UserAuthSystem/app/oauth"
	"github.com/witos44/UserAuthSystem/app/service"
	"github.com/witos44/UserAuthSystem/config"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  `Start the HTTP (Echo) account API, the gRPC health service and the expired session sweeper.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open account store")
	}
	defer store.Close()

	notifier := service.NewLogNotifier(cfg.App.RootURL)
	userAuthService := service.NewUserAuthService(store.accounts, store.sessions, notifier, cfg)
	providers := oauth.NewRegistry(cfg.OAuth)
	for name := range providers {
		logrus.WithField("provider", name).Info("OAuth provider enabled")
	}

	e := newHTTPServer(cfg, userAuthService, providers)

	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}
	grpcServer := grpc.NewServer()
	health := authgrpc.NewHealthReporter(store, cfg.GRPC.HealthCheckInterval)
	health.Register(grpcServer)

	sweeper := service.NewSessionSweeper(store.sessions, cfg.Sessions.SweepInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logrus.WithField("addr", grpcAddr).Info("Starting gRPC server")
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		return health.Run(gctx)
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("Server stopped with error")
		return err
	}
	logrus.Info("Server stopped")
	return nil
}

func newHTTPServer(cfg *config.Config, userAuthService service.UserAuthService, providers oauth.Registry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	if len(cfg.HTTP.CORSAllowedOrigins) > 0 {
		e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
			AllowOrigins:     cfg.HTTP.CORSAllowedOrigins,
			AllowCredentials: true,
		}))
	} else {
		e.Use(echomiddleware.CORS())
	}

	cookies := controller.CookieSettings{Secure: cfg.IsProduction(), TTL: cfg.JWT.TokenTTL}
	userAuthController := controller.NewUserAuthController(userAuthService, cookies)
	oauthController := controller.NewOAuthController(userAuthService, providers, cookies, cfg.App.RootURL, cfg.App.LoginURL)
	authMiddleware := middleware.NewAuthMiddleware(userAuthService)

	auth := e.Group("/auth")
	auth.POST("/register", userAuthController.Register)
	auth.POST("/login", userAuthController.Login)
	auth.POST("/verify-email/:token", userAuthController.VerifyEmail)
	auth.POST("/forgot-password", userAuthController.ForgotPassword)
	auth.POST("/reset-password/:token", userAuthController.ResetPassword)
	auth.GET("/:provider", oauthController.Start)
	auth.GET("/:provider/callback", oauthController.Callback)

	authProtected := auth.Group("")
	authProtected.Use(authMiddleware.RequireAuth)
	authProtected.POST("/logout", userAuthController.Logout)
	authProtected.GET("/user", userAuthController.CurrentUser)
	authProtected.POST("/resend-verification", userAuthController.ResendVerification)

	accountChanges := authProtected
	if cfg.App.RequireVerifiedEmail {
		accountChanges = authProtected.Group("", authMiddleware.RequireVerifiedEmail)
	}
	accountChanges.PUT("/profile", userAuthController.UpdateProfile)
	accountChanges.PUT("/change-password", userAuthController.ChangePassword)

	return e
}
