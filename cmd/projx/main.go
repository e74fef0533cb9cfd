package main

import (
	"fmt"
	"os"

	config "github.com/glkeru/projxchange/internal/config"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Debug(".env not loaded", zap.Error(err))
	}

	a := &app{cfg: config.Load(), logger: logger}
	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
