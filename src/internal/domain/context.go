package domain

import (
	"log/slog"
	"time"
)

type Config struct {
	Version string
	Host    string
	Port    int

	// APIToken is the Logseq HTTP API Server token from --api-token or the environment.
	APIToken string
	Debug    bool

	LogFile        string
	Binary         string
	Converter      string
	WorkDir        string
	JournalURL     string
	CommandTimeout time.Duration
	JournalTimeout time.Duration
	DebugPause     time.Duration
}

type Context struct {
	Config Config
	Logger *slog.Logger
}
