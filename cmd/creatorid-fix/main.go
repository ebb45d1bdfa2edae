// Command creatorid-fix normalizes the creatorId field of the integration bridge's
// config instances: every value that is missing, null, empty or not purely numeric
// is overwritten with "0", then the match query is re-run to verify the fix.
//
// Usage:
//
//	creatorid-fix run [--dry-run] [--backup]
//	creatorid-fix check [--show 10]
//	creatorid-fix restore <backupKey>
//	creatorid-fix history [--limit 20] [--last]
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/symphonyoss/integration-maintenance/pkg/logger"
)

var (
	logLevel string
	timeout  time.Duration
)

// exitError carries a process exit code other than 1.
type exitError struct {
	code int
	msg  string
}

func (e exitError) Error() string { return e.msg }

var rootCmd = &cobra.Command{
	Use:   "creatorid-fix",
	Short: "Normalize creatorId on integration config instances",
	Long: `creatorid-fix repairs the creatorId field of the integrationconfiginstance
collection. Documents whose creatorId is absent, null, empty or contains a
non-digit character get the default "0"; a validation pass then confirms that
no such document remains and prints {"response": bool, "message": string}.

Configuration comes from the environment (or a .env file) and the flags below.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logLevel == "" {
			logLevel = os.Getenv("LOG_LEVEL")
		}
		logger.Init(logLevel)
		logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "", "debug|info|warn|error (default: LOG_LEVEL or info)")
	pf.DurationVar(&timeout, "timeout", 5*time.Minute, "Overall operation timeout")
	pf.String("mongodb-uri", "", "MongoDB connection string (env MONGODB_URI)")
	pf.String("database", "", "Database holding the collection (env MONGODB_DATABASE)")
	pf.String("collection", "", "Collection to fix (env FIX_COLLECTION)")
	pf.String("field", "", "Field to normalize (env FIX_FIELD)")
	pf.String("default", "", "Value written to non-conforming documents (env FIX_DEFAULT)")
	pf.String("redis-host", "", "Redis host for the run lock (env REDIS_HOST)")
	pf.String("pushgateway", "", "Prometheus Pushgateway URL (env METRICS_PUSHGATEWAY_URL)")

	bind(pf.Lookup("mongodb-uri"), "MONGODB_URI")
	bind(pf.Lookup("database"), "MONGODB_DATABASE")
	bind(pf.Lookup("collection"), "FIX_COLLECTION")
	bind(pf.Lookup("field"), "FIX_FIELD")
	bind(pf.Lookup("default"), "FIX_DEFAULT")
	bind(pf.Lookup("redis-host"), "REDIS_HOST")
	bind(pf.Lookup("pushgateway"), "METRICS_PUSHGATEWAY_URL")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(historyCmd)
}

// bind makes flag f override the environment variable key.
func bind(f *pflag.Flag, key string) {
	if err := viper.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
