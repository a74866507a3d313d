package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/vk/accgraph/internal/app"
)

// Environment variables consulted for flags that are not given.
const (
	EnvEngineURL = "ACCGRAPH_ENGINE_URL"
	EnvLogLevel  = "ACCGRAPH_LOG_LEVEL"
	EnvLogFormat = "ACCGRAPH_LOG_FORMAT"
)

const defaultEnvFile = ".env"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
//
// A flag given on the command line wins over the process environment, which
// wins over the env file.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("accgraph", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
accgraph - builds preprocessing pipeline graphs and drives them on an engine.

Usage:
  accgraph [options] [DEFINITION_PATH]

Arguments:
  DEFINITION_PATH
    Path to a .hcl/.yaml/.yml file or a directory containing them.

Environment:
  ACCGRAPH_ENGINE_URL, ACCGRAPH_LOG_LEVEL, ACCGRAPH_LOG_FORMAT
    Defaults for -engine-url, -log-level and -log-format.

Options:
`)
		flagSet.PrintDefaults()
	}

	defFlag := flagSet.String("def", "", "Path to the definition file or directory.")
	dFlag := flagSet.String("d", "", "Path to the definition file or directory (shorthand).")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	engineURLFlag := flagSet.String("engine-url", "", "socket.io URL of a remote engine. Empty runs the local engine.")
	namespaceFlag := flagSet.String("engine-namespace", "/", "socket.io namespace of the remote engine.")
	insecureFlag := flagSet.Bool("insecure-skip-verify", false, "Skip TLS certificate verification for the remote engine.")
	iterationsFlag := flagSet.Int("iterations", 1, "Runs per pipeline on synthetic inputs. 0 only builds.")
	noFuseFlag := flagSet.Bool("no-fuse", false, "Disable operator fusion for every pipeline.")
	planFlag := flagSet.Bool("plan", false, "Print the built plan of every pipeline.")
	envFileFlag := flagSet.String("env-file", defaultEnvFile, "File with KEY=VALUE defaults.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	given := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) { given[f.Name] = true })

	env, err := readEnvFile(*envFileFlag, given["env-file"])
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	fromEnv := func(name, key string, val *string) {
		if given[name] {
			return
		}
		if v, ok := os.LookupEnv(key); ok {
			*val = v
		} else if v, ok := env[key]; ok {
			*val = v
		}
	}
	fromEnv("engine-url", EnvEngineURL, engineURLFlag)
	fromEnv("log-level", EnvLogLevel, logLevelFlag)
	fromEnv("log-format", EnvLogFormat, logFormatFlag)

	path := ""
	if *defFlag != "" {
		path = *defFlag
	} else if *dFlag != "" {
		path = *dFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Definition path determined.", "path", path)

	if path == "" {
		slog.Debug("No definition path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		DefinitionPath:     path,
		LogFormat:          logFormat,
		LogLevel:           logLevel,
		HealthcheckPort:    *healthPortFlag,
		EngineURL:          *engineURLFlag,
		EngineNamespace:    *namespaceFlag,
		InsecureSkipVerify: *insecureFlag,
		Iterations:         *iterationsFlag,
		NoFuse:             *noFuseFlag,
		PrintPlan:          *planFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

// readEnvFile reads KEY=VALUE pairs without touching the process
// environment. A missing default file is not an error.
func readEnvFile(path string, explicit bool) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	slog.Debug("Env file loaded.", "path", path, "keys", len(env))
	return env, nil
}
