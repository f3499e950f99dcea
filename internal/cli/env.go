package cli

import (
	"fmt"

	"github.com/harun/beacon/internal/config"
	"github.com/harun/beacon/internal/logger"
	"github.com/harun/beacon/internal/observability"
	"github.com/harun/beacon/pkg/tracker"
	"github.com/spf13/cobra"
)

// environment is what every data command needs: the resolved config, the
// process logger and a tracker over the data directory.
type environment struct {
	cfg     *config.Config
	log     *logger.Logger
	tracker *tracker.Tracker
}

// loadConfig resolves the config file and applies the global flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if dataDir != "" {
		cfg.DataDir = dataDir
		cfg.Logging.File = ""
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	return cfg, nil
}

func openEnvironment(cmd *cobra.Command) (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
		Out:       cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if cfg.Logging.AuditFile != "" {
		if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
			log.Close()
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	} else {
		observability.SetAuditLogger(log.Component("audit"))
	}

	tr, err := tracker.New(*cfg,
		tracker.WithLogger(log.GetZerolog()),
		tracker.WithAuditActor("cli"),
	)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open tracker: %w", err)
	}

	return &environment{cfg: cfg, log: log, tracker: tr}, nil
}

func (e *environment) Close() error {
	err := e.tracker.Close()
	e.log.Close()
	return err
}

func withEnvironment(fn func(cmd *cobra.Command, args []string, env *environment) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		env, err := openEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		return fn(cmd, args, env)
	}
}
