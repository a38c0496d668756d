package cmd

import (
	"context"
	"time"

	"github.com/hiboutik/oauth-client/internal/api"
	"github.com/hiboutik/oauth-client/internal/auth/hiboutik"
	"github.com/hiboutik/oauth-client/internal/config"
	"github.com/hiboutik/oauth-client/internal/logging"
	"github.com/hiboutik/oauth-client/internal/watcher"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// StartService serves the callback page until ctx is done. When configPath
// is set the file and its templates are watched and reloaded in place.
func StartService(ctx context.Context, cfg *config.Config, configPath string) error {
	var server *api.Server
	saveHook := api.WithTokenHook(func(ctx context.Context, token *hiboutik.TokenResult) {
		current := server.Config()
		if !persistsTokens(current) {
			return
		}
		if err := SaveToken(ctx, current, token); err != nil {
			logging.Entry(ctx).WithError(err).Error("failed to save token")
		}
	})
	var err error
	server, err = api.NewServer(cfg, saveHook)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Stop(stopCtx)
	})

	if configPath != "" {
		w, errWatch := watcher.NewWatcher(configPath, server.UpdateConfig)
		if errWatch != nil {
			log.WithError(errWatch).Warn("config watcher disabled")
		} else {
			w.SetConfig(cfg)
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	log.Infof("install page: %s", server.CallbackURL())
	return g.Wait()
}
