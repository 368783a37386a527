package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/jmallard/velostats/internal/backend"
)

func configureRouter(config *backend.Config, routes *backend.HttpRoutes) *gin.Engine {
	if config.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	authGroup := router.Group("/auth")
	authGroup.GET("/login", routes.LoginRoute)
	authGroup.GET("/callback", routes.CallbackRoute)
	authGroup.GET("/refresh", routes.RefreshRoute)
	authGroup.GET("/status", routes.StatusRoute)
	authGroup.GET("/logout", routes.LogoutRoute)
	authGroup.GET("/check-config", routes.CheckConfigRoute)
	authGroup.GET("/debug", routes.DebugRoute)

	router.GET("/activities", routes.ActivitiesRoute)

	router.GET("/goal", routes.GetGoalRoute)
	router.PUT("/goal", routes.PutGoalRoute)
	router.DELETE("/goal", routes.DeleteGoalRoute)
	router.GET("/goal/progress", routes.GoalProgressRoute)

	router.Use(routes.StaticFileServer("/"))

	return router
}

func configureLogging(config *backend.Config) {
	level, err := log.ParseLevel(config.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if config.Production() {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

func main() {
	ctx := context.Background()

	config, err := backend.GetConfig(ctx)
	if err != nil {
		log.Fatalf("Error loading configuration: %+v", err)
	}
	configureLogging(config)

	deps, err := backend.GetDependencies(ctx, config)
	if err != nil {
		log.Fatalf("Error configuring application dependencies: %+v", err)
	}

	routes := backend.GetRoutes(config, deps)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.HttpServer.Port),
		Handler: configureRouter(config, routes),
	}

	go func() {
		log.WithField("port", config.HttpServer.Port).Info("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %+v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown was not clean")
	}
	if err := deps.Close(); err != nil {
		log.WithError(err).Warn("closing store failed")
	}
}
