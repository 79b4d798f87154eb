package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/gophjournal/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string    address and port of the backend server
//	-d string    data directory
//	-m string    media directory
//	-l string    log level (debug, info, warn, error)
//	-i duration  periodic push interval, e.g. 15m
//	-n int       background task limit
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-m", "-l", "-i", "-n"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.MediaDir, "m", cfg.MediaDir, "media directory")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.DurationVar(&cfg.PushInterval, "i", cfg.PushInterval, "periodic push interval")
	fs.IntVar(&cfg.DispatcherLimit, "n", cfg.DispatcherLimit, "background task limit")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
