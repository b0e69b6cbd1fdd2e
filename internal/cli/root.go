// Package cli implements the jmigrate command tree.
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/jmigrate/internal/config"
	"github.com/ALT-F4-LLC/jmigrate/internal/db"
	"github.com/ALT-F4-LLC/jmigrate/internal/jobs"
	"github.com/ALT-F4-LLC/jmigrate/internal/migrate"
	"github.com/ALT-F4-LLC/jmigrate/internal/output"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

type contextKey string

const (
	dbKey  contextKey = "db"
	cfgKey contextKey = "cfg"
)

// CmdError wraps an error with a machine-readable error code for structured output.
type CmdError struct {
	Err  error
	Code output.ErrorCode
}

func (e *CmdError) Error() string { return e.Err.Error() }

func (e *CmdError) Unwrap() error { return e.Err }

func cmdErr(err error, code output.ErrorCode) *CmdError {
	return &CmdError{Err: err, Code: code}
}

var rootCmd = &cobra.Command{
	Use:     "jmigrate",
	Short:   "Export and import WordPress sites as migration archives",
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve()
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		ctx := context.WithValue(cmd.Context(), cfgKey, cfg)

		if _, ok := cmd.Annotations["needsDB"]; !ok {
			cmd.SetContext(ctx)
			return nil
		}

		if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
			return cmdErr(
				fmt.Errorf("no job database found, run 'jmigrate init' to create one"),
				output.ErrNotFound,
			)
		}

		conn, err := db.OpenStore(cfg.DBPath)
		if err != nil {
			return cmdErr(err, output.ErrDatabase)
		}

		cmd.SetContext(context.WithValue(ctx, dbKey, conn))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		conn, ok := cmd.Context().Value(dbKey).(*sql.DB)
		if ok && conn != nil {
			return conn.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-essential output")
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

// needsDB marks a command that works on the job database.
var needsDB = map[string]string{"needsDB": "true"}

func getWriter(cmd *cobra.Command) *output.Writer {
	jsonMode, _ := cmd.Flags().GetBool("json")
	quietMode, _ := cmd.Flags().GetBool("quiet")
	return output.New(jsonMode, quietMode)
}

func getCfg(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(cfgKey).(*config.Config)
	return cfg
}

func getDB(cmd *cobra.Command) *sql.DB {
	conn, _ := cmd.Context().Value(dbKey).(*sql.DB)
	return conn
}

// errorCode classifies an error for the JSON envelope and the exit code.
func errorCode(err error) output.ErrorCode {
	var (
		ce *CmdError
		ve *migrate.ValidationError
		ie *migrate.IOError
		de *migrate.DatabaseError
		te *migrate.ExternalToolError
	)
	switch {
	case errors.As(err, &ce):
		return ce.Code
	case errors.As(err, &ve):
		return output.ErrValidation
	case errors.As(err, &de):
		return output.ErrDatabase
	case errors.As(err, &te):
		return output.ErrExternal
	case errors.As(err, &ie):
		return output.ErrIO
	case errors.Is(err, jobs.ErrNotFound):
		return output.ErrNotFound
	case errors.Is(err, jobs.ErrFinished):
		return output.ErrConflict
	default:
		return output.ErrGeneral
	}
}

// Execute runs the root command and returns an exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		jsonMode, _ := rootCmd.PersistentFlags().GetBool("json")
		quietMode, _ := rootCmd.PersistentFlags().GetBool("quiet")
		w := output.New(jsonMode, quietMode)

		var ce *CmdError
		if errors.As(err, &ce) {
			return w.Error(ce.Err, ce.Code)
		}
		return w.Error(err, errorCode(err))
	}
	return output.ExitSuccess
}
