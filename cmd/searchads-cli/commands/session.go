package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"searchads-client/internal/components/telemetry"
	"searchads-client/internal/searchads"
	"searchads-client/internal/session"
)

const (
	envUsername  = "SEARCHADS_USERNAME"
	envPassword  = "SEARCHADS_PASSWORD"
	envCookies   = "SEARCHADS_COOKIES"
	envXSRFToken = "SEARCHADS_XSRF_TOKEN"
)

var stdinPrompt = newLinePrompt(os.Stdin)

func promptCode(ctx context.Context) (string, error) {
	fmt.Fprint(os.Stderr, "Enter the verification code sent to your trusted device: ")
	return stdinPrompt.ReadLine(ctx)
}

// login builds a client from the config and environment and logs it in. The
// returned cleanup closes the client and the session store.
func login(ctx context.Context) (*searchads.Client, func(), error) {
	username := os.Getenv(envUsername)
	password := os.Getenv(envPassword)
	if username == "" || password == "" {
		return nil, nil, fmt.Errorf("%s and %s must be set, either in the environment or in a .env file", envUsername, envPassword)
	}

	store, closeStore, err := config.SessionStore.openStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}

	opts := searchads.Options{
		APIURL:             config.Client.APIURL,
		ConcurrentRequests: config.Client.ConcurrentRequests,
		RequestsPerSecond:  config.Client.RequestsPerSecond,
		RequestTimeout:     time.Duration(config.Client.TimeoutSeconds) * time.Second,
		Cookies:            os.Getenv(envCookies),
		XSRFToken:          os.Getenv(envXSRFToken),
		Store:              store,
		Telemetry:          telemetry.NewSlogAPI(nil),
		TwoFactor:          promptCode,
		OnExternalCookiesFailed: func(ctx context.Context, err error) {
			slog.Warn("saved session was rejected, logging in again", "err", err)
		},
		OnAuthenticated: func(ctx context.Context, snap session.Snapshot) {
			slog.Info("logged in", "cookies", len(snap.Cookies))
		},
	}
	if config.Telemetry.DumpDir != "" {
		output, err := telemetry.NewFilesystemOutput(config.Telemetry.DumpDir)
		if err != nil {
			slog.Warn("failed to create http dump directory", "dir", config.Telemetry.DumpDir, "err", err)
		} else {
			opts.DumpOutput = output
		}
	}

	client := searchads.NewClient(opts)
	cleanup := func() {
		client.Close()
		err := closeStore()
		if err != nil {
			slog.Warn("failed to close session store", "err", err)
		}
	}

	err = client.Login(ctx, username, password)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return client, cleanup, nil
}
