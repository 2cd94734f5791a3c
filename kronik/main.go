package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kronik/kronik/config"
	"kronik/kronik/controllers"
	"kronik/kronik/routes"
	"kronik/kronik/sources/sqldb"
	"kronik/kronik/sources/sqldb/dao"
	httputils "kronik/kronik/utils/http"
	"kronik/kronik/utils/logging"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logging.InitLogger(cfg.LogsDir, cfg.LogLevel); err != nil {
		os.Stderr.WriteString("logger error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := os.MkdirAll(cfg.DBDir(), os.ModePerm); err != nil {
		logging.ErrorLogger.Fatal("failed to create db dir", zap.Error(err))
	}
	db, err := sqldb.NewDatabase(dbCtx, cfg)
	if err != nil {
		logging.ErrorLogger.Fatal("database connection error", zap.Error(err))
	}
	defer db.Close()

	sessionsCtrl := controllers.NewSessionsController(dao.NewSessionDAO(db.DB), dao.NewVideoDAO(db.DB))
	r := routes.NewRouter(routes.Controllers{
		Health:     controllers.NewHealthController(),
		Sessions:   sessionsCtrl,
		AuthSecret: cfg.AuthSecret,
	})
	if err := httputils.Serve(ctx, cfg.StatusAddr, r); err != nil {
		logging.ErrorLogger.Error("status server stopped", zap.Error(err))
	}
}
