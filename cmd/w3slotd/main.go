package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"xdao.co/w3slot/config"
	"xdao.co/w3slot/engine"
	"xdao.co/w3slot/internal/logutil"
	"xdao.co/w3slot/storage/ledgerregistry"
	"xdao.co/w3slot/transport/grpcslot"

	_ "xdao.co/w3slot/storage/boltdb"
	_ "xdao.co/w3slot/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("w3slotd", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	configPath := fs.String("config", "", "YAML config file (default $"+config.EnvVar+")")
	listen := fs.String("listen", config.DefaultListen, "listen address")
	program := fs.String("program", "", "program address (base58)")
	backend := fs.String("backend", "memory", "ledger backend name")
	listBackends := fs.Bool("list-backends", false, "List supported ledger backends and exit")
	airdrop := fs.Bool("airdrop", false, "Enable development funding")
	airdropLimit := fs.Uint64("airdrop-limit", 0, "Largest single airdrop (0 = unlimited)")
	logLevel := fs.String("log-level", "info", "log level")

	backendFlags := pflag.NewFlagSet("ledger", pflag.ContinueOnError)
	ledgerregistry.RegisterFlags(backendFlags, ledgerregistry.UsageDaemon)
	fs.AddFlagSet(backendFlags)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listBackends {
		for _, b := range ledgerregistry.List(ledgerregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	cfg, err := config.LoadDaemon(config.Path(*configPath))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if fs.Changed("listen") {
		cfg.Listen = *listen
	}
	if fs.Changed("program") {
		cfg.Program = *program
	}
	if fs.Changed("backend") {
		cfg.Ledger.Backend = *backend
	}
	if fs.Changed("airdrop") {
		cfg.Airdrop.Enabled = *airdrop
	}
	if fs.Changed("airdrop-limit") {
		cfg.Airdrop.Limit = *airdropLimit
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}
	backendFlags.VisitAll(func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if cfg.Ledger.Config == nil {
			cfg.Ledger.Config = map[string]string{}
		}
		cfg.Ledger.Config[f.Name] = f.Value.String()
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	logger := logutil.Stderr(cfg.LogLevel)
	programAddr, _ := cfg.ProgramAddress()

	ledger, err := ledgerregistry.OpenWithConfig(cfg.Ledger.Backend, ledgerregistry.UsageDaemon, cfg.Ledger.Config)
	if err != nil {
		logger.Error().Err(err).Str("backend", cfg.Ledger.Backend).Msg("opening ledger")
		return 2
	}
	defer ledger.Close()

	opts := []engine.Option{
		engine.WithRent(cfg.Rent.Linear()),
		engine.WithLogger(logger.With().Str("component", "engine").Logger()),
	}
	if cfg.Airdrop.Enabled {
		opts = append(opts, engine.WithAirdrop(cfg.Airdrop.Limit))
	}
	eng := engine.New(programAddr, ledger, opts...)

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		logger.Error().Err(err).Msg("listen")
		return 1
	}
	defer lis.Close()

	srvOpts := []grpc.ServerOption{grpc.UnaryInterceptor(grpcslot.UnaryLogger(logger))}
	if cfg.MaxMsgBytes > 0 {
		srvOpts = append(srvOpts, grpc.MaxRecvMsgSize(cfg.MaxMsgBytes), grpc.MaxSendMsgSize(cfg.MaxMsgBytes))
	}
	s := grpc.NewServer(srvOpts...)
	grpcslot.RegisterSlotProgramServer(s, &grpcslot.Server{Program: eng})

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		s.GracefulStop()
	}()

	logger.Info().
		Str("listen", lis.Addr().String()).
		Str("backend", cfg.Ledger.Backend).
		Stringer("program", programAddr).
		Bool("airdrop", cfg.Airdrop.Enabled).
		Msg("w3slotd listening")
	if err := s.Serve(lis); err != nil {
		logger.Error().Err(err).Msg("serve")
		return 1
	}
	return 0
}
