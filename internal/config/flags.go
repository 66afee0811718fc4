package config

import (
	"flag"
	"os"
	"time"

	"github.com/consentlab/takeout-agent/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-w int      poll interval, seconds
//	-k          keep the agent alive after an unexpected failure
//	-t string   scratch directory for intermediate files
//	-s string   vault secret key
//	-b string   S3 bucket name
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. The poll
// interval is accepted as an integer number of seconds and converted to a
// time.Duration.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-w", "-k", "-t", "-s", "-b", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	wait := fs.Int("w", int(config.PollInterval.Seconds()), "poll interval (in seconds)")
	fs.BoolVar(&config.KeepAlive, "k", config.KeepAlive, "restart the agent loop after a fatal error")
	fs.StringVar(&config.TmpDir, "t", config.TmpDir, "scratch directory")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "vault secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.PollInterval = time.Duration(*wait) * time.Second
}
