package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hiboutik/oauth-client/internal/api"
	"github.com/hiboutik/oauth-client/internal/auth/hiboutik"
	"github.com/hiboutik/oauth-client/internal/browser"
	"github.com/hiboutik/oauth-client/internal/config"
	"github.com/hiboutik/oauth-client/internal/misc"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultLoginTimeout bounds how long the login waits for the redirect.
const DefaultLoginTimeout = 5 * time.Minute

// LoginOptions controls the interactive login.
type LoginOptions struct {
	// NoBrowser skips the local callback server. The authorize URL is shown
	// and the user pastes the URL the provider redirected to.
	NoBrowser bool

	// Input supplies the pasted callback URL. Defaults to os.Stdin.
	Input io.Reader

	// Timeout bounds the wait for the redirect. Zero uses DefaultLoginTimeout.
	Timeout time.Duration

	// ServerOptions are passed to the callback server.
	ServerOptions []api.ServerOption
}

// DoLogin runs the authorization flow once and saves the obtained token.
func DoLogin(ctx context.Context, cfg *config.Config, options *LoginOptions) error {
	if options == nil {
		options = &LoginOptions{}
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		token *hiboutik.TokenResult
		err   error
	)
	if options.NoBrowser {
		token, err = pastedLogin(ctx, cfg, options)
	} else {
		token, err = serverLogin(ctx, cfg, options)
	}
	if err != nil {
		return err
	}
	if err = SaveToken(ctx, cfg, token); err != nil {
		return err
	}
	fmt.Println("Hiboutik authentication successful!")
	return nil
}

// serverLogin serves the callback page locally and waits for the first
// successful exchange.
func serverLogin(ctx context.Context, cfg *config.Config, options *LoginOptions) (*hiboutik.TokenResult, error) {
	tokens := make(chan *hiboutik.TokenResult, 1)
	hook := api.WithTokenHook(func(_ context.Context, token *hiboutik.TokenResult) {
		select {
		case tokens <- token:
		default:
		}
	})
	server, err := api.NewServer(cfg, append(options.ServerOptions, hook)...)
	if err != nil {
		return nil, err
	}

	var token *hiboutik.TokenResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if errStop := server.Stop(stopCtx); errStop != nil {
				log.WithError(errStop).Warn("callback server did not stop cleanly")
			}
		}()
		browser.Present(server.CallbackURL(), true)
		fmt.Println("Waiting for the authorization callback...")
		select {
		case token = <-tokens:
			return nil
		case <-gctx.Done():
			if errors.Is(gctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("login: timed out waiting for the callback")
			}
			return gctx.Err()
		}
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}
	return token, nil
}

// pastedLogin shows the authorize URL and completes the flow from the
// redirect URL typed or pasted by the user.
func pastedLogin(ctx context.Context, cfg *config.Config, options *LoginOptions) (*hiboutik.TokenResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	browser.Present(client.AuthorizationRequest().URL, false)

	input := options.Input
	if input == nil {
		input = os.Stdin
	}
	fmt.Print("Paste the URL you were redirected to: ")
	line, err := readLine(ctx, input)
	if err != nil {
		return nil, err
	}
	cb, err := misc.ParseOAuthCallback(line)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if cb == nil {
		return nil, fmt.Errorf("login: no callback URL provided")
	}

	result, err := client.Run(ctx, hiboutik.CallbackParamsFromQuery(cb.Query()))
	if err != nil {
		return nil, err
	}
	if result.Failed() {
		return nil, &hiboutik.OAuthError{
			Code:        result.ErrorCode(),
			Description: failureDescription(result),
			StatusCode:  result.HTTPStatus(),
		}
	}
	if result.Page != hiboutik.PageResult {
		return nil, fmt.Errorf("login: the pasted URL carries no authorization code")
	}
	return result.Result, nil
}

func failureDescription(result *hiboutik.FlowResult) string {
	if result.Result != nil && result.Result.ErrorDescription != "" {
		return result.Result.ErrorDescription
	}
	return result.ErrorDescription
}

// readLine returns the first line of r, giving up when ctx is done.
func readLine(ctx context.Context, r io.Reader) (string, error) {
	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			errs <- fmt.Errorf("login: read callback URL: %w", err)
			return
		}
		lines <- line
	}()
	select {
	case line := <-lines:
		return line, nil
	case err := <-errs:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func newClient(cfg *config.Config) (*hiboutik.Client, error) {
	client, err := hiboutik.New(cfg.Account, cfg.ClientID, cfg.ClientSecret,
		hiboutik.WithProviderHost(cfg.ProviderHost),
		hiboutik.WithBaseURL(cfg.BaseURL),
		hiboutik.WithSDKConfig(&cfg.SDKConfig),
	)
	if err != nil {
		return nil, err
	}
	return client.SetScope(cfg.Scope), nil
}
