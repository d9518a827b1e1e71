package main

import (
	"os"

	"botforge-server/src/configs"
	"botforge-server/src/configs/database"
	"botforge-server/src/core/utils"
	"botforge-server/src/httpsvr/app"
)

func main() {
	cfg, path, err := configs.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Log.LogDir, cfg.Log.LogFile, cfg.Log.LogLevel)
	logger.Info("config loaded from %s", path)

	if err := database.InitDB(cfg); err != nil {
		logger.Error("init database: %v", err)
		os.Exit(1)
	}

	server, err := app.NewServer(cfg, logger)
	if err != nil {
		logger.Error("init server: %v", err)
		os.Exit(1)
	}
	if err := server.Run(); err != nil {
		logger.Error("server stopped: %v", err)
		os.Exit(1)
	}
}
