package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand(config.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "reservationd",
		Short:         "Book reservation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			bindFlags(cmd.Root(), v)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(config.FromViper(v))
		},
	}

	flags := root.PersistentFlags()
	flags.String("db-driver", v.GetString(config.KeyDBDriver), "database driver (postgres|sqlite)")
	flags.String("pg-dsn", v.GetString(config.KeyPGDSN), "database DSN")
	flags.String("http-port", v.GetString(config.KeyHTTPPort), "HTTP listen port")
	flags.String("grpc-port", v.GetString(config.KeyGRPCPort), "gRPC health listen port")
	flags.String("rabbitmq-url", v.GetString(config.KeyRabbitMQURL), "RabbitMQ URL")
	flags.String("log-level", v.GetString(config.KeyLogLevel), "log level (debug|info|warn|error)")
	flags.Duration("sweep-interval", v.GetDuration(config.KeySweepInterval), "expiration sweep cadence")
	flags.Duration("reservation-ttl", v.GetDuration(config.KeyReservationTTL), "expire only ACTIVE reservations older than this (0 expires all)")
	flags.Bool("sweep-on-start", v.GetBool(config.KeySweepOnStart), "run an expiration sweep at startup")
	flags.Int("max-active-reservations", v.GetInt(config.KeyMaxActiveReservations), "ACTIVE reservations allowed per user")
	flags.Bool("strict-cancel", v.GetBool(config.KeyStrictCancel), "reject canceling CANCELED or EXPIRED reservations")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API, gRPC health server and expiration sweeper",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(config.FromViper(v))
			},
		},
		&cobra.Command{
			Use:   "expire",
			Short: "Run one expiration sweep and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runExpire(cmd.Context(), config.FromViper(v))
			},
		},
	)

	return root
}

// bindFlags makes explicitly set flags take precedence over the environment
func bindFlags(root *cobra.Command, v *viper.Viper) {
	flags := root.PersistentFlags()
	for _, name := range []string{
		"db-driver", "pg-dsn", "http-port", "grpc-port", "rabbitmq-url", "log-level",
		"sweep-interval", "reservation-ttl", "sweep-on-start", "max-active-reservations", "strict-cancel",
	} {
		flag := flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		v.Set(strings.ReplaceAll(name, "-", "_"), flag.Value.String())
	}
}
