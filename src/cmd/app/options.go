package main

import (
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"

	"logseqbridge/src/internal/domain"
	"logseqbridge/src/internal/service/cli"
	"logseqbridge/src/internal/service/journal"
	"logseqbridge/src/internal/service/logging"
)

const debugPause = 3 * time.Second

type Options struct {
	Port     int    `short:"p" long:"port" description:"Port to listen on" default:"8765"`
	Host     string `long:"host" description:"Host to bind to" default:"localhost"`
	APIToken string `long:"api-token" description:"Logseq API token for append operations" env:"LOGSEQ_API_SERVER_TOKEN"`
	Debug    bool   `long:"debug" description:"Log full request details (queries, graph names, URLs)"`
	LogFile  string `long:"log-file" description:"Log file path (default: next to the executable)"`
	Version  bool   `short:"v" long:"version" description:"Print the version and exit"`
}

func parseOptions(args []string) (*Options, error) {
	opts := &Options{}
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "logseq-http-server"
	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", rest)
	}
	return opts, nil
}

func (o *Options) config() domain.Config {
	logFile := o.LogFile
	if logFile == "" {
		logFile = logging.DefaultPath(domain.LogFileName)
	}
	return domain.Config{
		Version:        Version,
		Host:           o.Host,
		Port:           o.Port,
		APIToken:       o.APIToken,
		Debug:          o.Debug,
		LogFile:        logFile,
		Binary:         cli.Resolve(domain.BinaryEnv, "logseq", domain.DefaultBinary),
		Converter:      cli.Resolve(domain.ConverterEnv, domain.DefaultConverter, domain.DefaultConverter),
		WorkDir:        cli.HomeDir(),
		JournalURL:     domain.DefaultJournalURL,
		CommandTimeout: cli.DefaultTimeout,
		JournalTimeout: journal.DefaultTimeout,
		DebugPause:     debugPause,
	}
}
