// Package main is the entry point of the Hiboutik OAuth client. It serves the
// install and callback pages, runs a one-shot login or refreshes a token.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hiboutik/oauth-client/internal/auth/hiboutik"
	"github.com/hiboutik/oauth-client/internal/buildinfo"
	"github.com/hiboutik/oauth-client/internal/cmd"
	"github.com/hiboutik/oauth-client/internal/config"
	"github.com/hiboutik/oauth-client/internal/logging"
	"github.com/hiboutik/oauth-client/internal/util"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	var (
		configPath   string
		login        bool
		noBrowser    bool
		refresh      bool
		refreshToken string
		tokenFile    string
		showVersion  bool
	)
	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.BoolVar(&login, "login", false, "Run the authorization flow once and save the token")
	flag.BoolVar(&noBrowser, "no-browser", false, "Don't open the browser; paste the callback URL instead")
	flag.BoolVar(&refresh, "refresh", false, "Refresh the saved token")
	flag.StringVar(&refreshToken, "refresh-token", "", "Exchange this refresh token instead of the saved one")
	flag.StringVar(&tokenFile, "token-file", "", "Write obtained tokens to this file instead of stdout")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("hiboutik-oauth Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		os.Exit(1)
	}
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	if configPath == "" {
		if candidate := filepath.Join(wd, "config.yaml"); fileExists(candidate) {
			configPath = candidate
		}
	}
	if configPath != "" {
		if resolved, errResolve := util.ResolvePath(configPath); errResolve == nil {
			configPath = resolved
		}
	}

	cfg, err := config.LoadConfigOptional(configPath, configPath == "")
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		os.Exit(1)
	}
	if tokenFile != "" {
		cfg.TokenFile = tokenFile
	}
	if cfg.TokenFile != "" {
		if resolved, errResolve := util.ResolvePath(cfg.TokenFile); errResolve == nil {
			cfg.TokenFile = resolved
		}
	}

	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		os.Exit(1)
	}
	util.SetLogLevel(cfg)
	log.Infof("hiboutik-oauth Version: %s, Commit: %s, BuiltAt: %s", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case refresh || refreshToken != "":
		err = cmd.DoRefresh(ctx, cfg, refreshToken)
	case login:
		err = cmd.DoLogin(ctx, cfg, &cmd.LoginOptions{NoBrowser: noBrowser})
	default:
		err = cmd.StartService(ctx, cfg, configPath)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error(hiboutik.UserFriendlyMessage(err))
		stop()
		os.Exit(1)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
