package main

import (
	"log"

	"github.com/strikesense/analysis-backend/internal/config"
	"github.com/strikesense/analysis-backend/internal/server"
	"github.com/strikesense/analysis-backend/pkg/db/aws"
	"github.com/strikesense/analysis-backend/pkg/db/postgres"
	"github.com/strikesense/analysis-backend/pkg/db/redis"
	"github.com/strikesense/analysis-backend/pkg/logger"
)

func main() {
	log.Println("Starting analysis API server")

	configFile := "config.yml"
	cfgFile, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("loadConfig: %v", err)
	}
	cfg, err := config.ParseConfig(cfgFile)
	if err != nil {
		log.Fatalf("parseConfig: %v", err)
	}

	appLogger := logger.NewApiLogger(cfg)
	appLogger.InitLogger()
	appLogger.Infof("AppVersion: %s, LogLevel: %s, Mode: %s", cfg.Server.AppVersion, cfg.Logger.Level, cfg.Server.Mode)

	psqlDB, err := postgres.NewPsqlDB(cfg)
	if err != nil {
		appLogger.Fatalf("could not connect to db: %s", err)
	}
	defer psqlDB.Close()
	appLogger.Infof("db connected, status: %#v", psqlDB.Stats())

	if err = postgres.RunMigrations(cfg); err != nil {
		appLogger.Fatalf("could not run migrations: %s", err)
	}
	appLogger.Info("migrations applied")

	redisClient, err := redis.NewRedisClient(cfg)
	if err != nil {
		appLogger.Fatalf("could not connect to redis: %s", err)
	}
	defer redisClient.Close()
	appLogger.Infof("redis connected")

	s3Client, presignClient, err := aws.NewAWSClient(cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.AccessKey, cfg.S3.SecretKey)
	if err != nil {
		appLogger.Fatalf("could not create s3 client: %s", err)
	}

	s := server.NewServer(cfg, psqlDB, redisClient, s3Client, presignClient, appLogger)
	if err = s.Run(); err != nil {
		appLogger.Fatalf("could not start server: %s", err)
	}
}
