package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/GriffinCanCode/termstream/internal/infrastructure/config"
	"github.com/GriffinCanCode/termstream/internal/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options holds command-line overrides. Flags win over the config file
// and the environment, but only when given explicitly.
type options struct {
	configPath string
	port       string
	host       string
	logLevel   string
	dev        bool
	shell      string
}

func parseFlags(args []string) (*options, *pflag.FlagSet, error) {
	var opts options
	flagSet := pflag.NewFlagSet("termstream", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to a TOML or YAML config file")
	flagSet.StringVarP(&opts.port, "port", "p", "", "HTTP listen port")
	flagSet.StringVar(&opts.host, "host", "", "HTTP listen host")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flagSet.BoolVar(&opts.dev, "dev", false, "development logging (console, debug)")
	flagSet.StringVar(&opts.shell, "shell", "", "program spawned for each session")

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return &opts, flagSet, nil
}

func loadConfig(opts *options, flagSet *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	if flagSet.Changed("port") {
		cfg.Server.Port = opts.port
	}
	if flagSet.Changed("host") {
		cfg.Server.Host = opts.host
	}
	if flagSet.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flagSet.Changed("dev") {
		cfg.Logging.Development = opts.dev
	}
	if flagSet.Changed("shell") {
		cfg.Terminal.Shell = opts.shell
	}
	return cfg, cfg.Validate()
}

func run(args []string) error {
	opts, flagSet, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(opts, flagSet)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-sigChan:
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	return srv.Shutdown(ctx)
}
