package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard reading from stdin
func NewWizard() *Wizard {
	return NewWizardWithIO(os.Stdin, os.Stdout)
}

// NewWizardWithIO creates a wizard over the given streams
func NewWizardWithIO(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run runs the interactive configuration wizard, starting from base
func (w *Wizard) Run(base *Config) (*Config, error) {
	fmt.Fprintln(w.out, "=== Beacon Configuration Wizard ===")
	fmt.Fprintln(w.out)

	cfg := DefaultConfig()
	if base != nil {
		copied := *base
		cfg = &copied
	}
	validator := NewValidator()

	// Collector URL
	for {
		fmt.Fprintf(w.out, "Collector URL%s: ", hint(cfg.Collector.URL))
		raw, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if raw == "" {
			raw = cfg.Collector.URL
		}

		if err := validator.ValidateCollectorURL(raw); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}

		cfg.Collector.URL = raw
		break
	}

	fmt.Fprintln(w.out)

	// Storage
	fmt.Fprintln(w.out, "Storage driver options:")
	fmt.Fprintln(w.out, "  file   - one JSON file per namespace (default)")
	fmt.Fprintln(w.out, "  sqlite - single SQLite database")
	fmt.Fprintln(w.out, "  memory - nothing persisted")
	fmt.Fprintf(w.out, "Storage driver%s: ", hint(cfg.Storage.Driver))
	driver, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if driver != "" {
		if err := validator.ValidateStorageDriver(driver); err != nil {
			fmt.Fprintf(w.out, "Warning: %v, keeping %s\n", err, cfg.Storage.Driver)
		} else {
			cfg.Storage.Driver = driver
		}
	}

	fmt.Fprintln(w.out)

	// Queue
	fmt.Fprintf(w.out, "Offline queue capacity%s: ", hint(strconv.Itoa(cfg.Queue.Capacity)))
	capacity, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if capacity != "" {
		n, err := strconv.Atoi(capacity)
		if err != nil || validator.ValidatePositive("queue.capacity", n) != nil {
			fmt.Fprintf(w.out, "Warning: invalid capacity %q, keeping %d\n", capacity, cfg.Queue.Capacity)
		} else {
			cfg.Queue.Capacity = n
		}
	}

	fmt.Fprintln(w.out)

	// Log Level
	fmt.Fprintln(w.out, "Logging:")
	fmt.Fprintf(w.out, "Log level (debug/info/warn/error)%s: ", hint(cfg.Logging.Level))
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			fmt.Fprintf(w.out, "Warning: %v, keeping %s\n", err, cfg.Logging.Level)
		} else {
			cfg.Logging.Level = level
		}
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return cfg, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func hint(def string) string {
	if def == "" {
		return ""
	}
	return " [" + strings.TrimSpace(def) + "]"
}
