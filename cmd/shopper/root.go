package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/storefront/pkg/client"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/discovery"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	apiURL      string
	dataDir     string
	etcd        []string
	serviceName string
	debug       bool

	logger  *zap.Logger
	store   *client.BadgerStore
	session *client.Session
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "shopper",
		Short:         "Browse, fill a cart and check out against a storefront",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.apiURL, "api", envOr("SHOPPER_API", "http://localhost:5000"), "storefront base URL")
	flags.StringVar(&a.dataDir, "data", envOr("SHOPPER_DATA", defaultDataDir()), "local data directory")
	flags.StringSliceVar(&a.etcd, "etcd", nil, "etcd endpoints used to resolve the API instead of --api")
	flags.StringVar(&a.serviceName, "service", "storefront", "service name registered in etcd")
	flags.BoolVar(&a.debug, "debug", false, "log client activity to stderr")

	root.AddCommand(
		newSignupCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newAddCmd(a),
		newCartCmd(a),
		newQtyCmd(a),
		newRemoveCmd(a),
		newCheckoutCmd(a),
		newOrdersCmd(a),
		newOrderCmd(a),
	)
	return root
}

func (a *app) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a.logger = zap.NewNop()
	if a.debug {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		a.logger = logger
	}

	baseURL, err := a.resolveAPI(ctx)
	if err != nil {
		return err
	}

	store, err := client.OpenBadgerStore(a.dataDir)
	if err != nil {
		return err
	}
	a.store = store
	a.session = client.NewSession(client.NewAPI(baseURL, a.logger.Named("api")), store, a.logger.Named("session"))
	return nil
}

func (a *app) resolveAPI(ctx context.Context) (string, error) {
	if len(a.etcd) == 0 {
		return a.apiURL, nil
	}

	sd, err := discovery.NewServiceDiscovery(&config.EtcdConfig{
		Endpoints:   a.etcd,
		DialTimeout: 5 * time.Second,
		Prefix:      "/services/",
	})
	if err != nil {
		return "", err
	}
	defer sd.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	instance, err := sd.Resolve(ctx, a.serviceName)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", a.serviceName, err)
	}
	a.logger.Debug("Resolved API", zap.String("url", instance.BaseURL()))
	return instance.BaseURL(), nil
}

// close waits for pending cart syncs and releases the local store. It is safe
// to call when open failed or never ran.
func (a *app) close() {
	if a.session != nil {
		a.session.Flush()
		a.session = nil
	}
	if a.store != nil {
		_ = a.store.Close()
		a.store = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".shopper"
	}
	return filepath.Join(dir, "shopper")
}

func fullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
