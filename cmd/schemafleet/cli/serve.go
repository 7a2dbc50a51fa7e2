package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/schemafleet/schemafleet/internal/handler"
	"github.com/schemafleet/schemafleet/internal/scheduler"
	"github.com/schemafleet/schemafleet/internal/server"
)

const banner = `
           _                          __ _           _
  ___  ___| |__   ___ _ __ ___   __ _ / _| | ___  ___| |_
 / __|/ __| '_ \ / _ \ '_ ' _ \ / _' | |_| |/ _ \/ _ \ __|
 \__ \ (__| | | |  __/ | | | | | (_| |  _| |  __/  __/ |_
 |___/\___|_| |_|\___|_| |_| |_|\__,_|_| |_|\___|\___|\__|
`

func newServeCmd() *cobra.Command {
	var (
		port    int
		host    string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Schemafleet API server",
		Long:  "Start the HTTP server that exposes the schema catalog, fan-out execution, drift detection, and migration history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, verbose)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, verbose bool) error {
	fmt.Print(banner)
	fmt.Println()

	logger := newLogger(verbose)

	env, err := buildEnv(logger)
	if err != nil {
		return err
	}
	defer env.Close()
	env.releaseOwnLocks(context.Background())

	sched, err := scheduler.New(detectJob{env.detector}, env.store, scheduler.Config{
		DetectSpec: viper.GetString("scheduler.detect"),
		RotateSpec: viper.GetString("scheduler.rotate"),
		Retention:  viper.GetDuration("scheduler.retention"),
	}, logger)
	if err != nil {
		return fmt.Errorf("scheduler config: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	// Prune tenant connection pools nobody has touched in a while.
	sweepDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				env.registry.SweepIdle()
			case <-sweepDone:
				return
			}
		}
	}()
	defer close(sweepDone)

	srvCfg := server.DefaultConfig()
	srvCfg.Host = host
	srvCfg.Port = port
	srvCfg.Version = versionString()
	if origins := viper.GetStringSlice("server.cors_origins"); len(origins) > 0 {
		srvCfg.CORSOrigins = origins
	}
	if n := viper.GetInt("server.execute_per_minute"); n > 0 {
		srvCfg.ExecutePerMinute = n
	}

	srv := server.New(srvCfg, env.store, env.registry, server.Handlers{
		Schema:  handler.NewSchemaHandler(env.store, logger),
		Execute: handler.NewExecuteHandler(env.executor, logger),
		Detect:  handler.NewDetectHandler(env.detector, logger),
		History: handler.NewHistoryHandler(env.store, logger),
	}, logger)

	tenants, _ := env.roster.Tenants(context.Background())
	fmt.Printf("→ Schemafleet %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", host, port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", host, port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", host, port)
	fmt.Printf("→ Tenants: %d, baseline roles: %d\n", len(tenants), len(env.registry.BaselineRoles()))
	fmt.Println()

	return srv.ListenAndServe()
}
