package service

import (
	"fmt"
	"io"
	"net"
	"strings"

	"logseqbridge/src/internal/domain"
)

var rule = strings.Repeat("=", 60)

var endpoints = []string{
	"GET  /health",
	"GET  /version",
	"GET  /list",
	"GET  /show?graph=NAME",
	"GET  /search?q=QUERY&graph=NAME",
	`POST /query (body: {"graph": "NAME", "query": "..."})`,
	`POST /append-to-journal (body: {"content": "TEXT"}) - requires API token`,
	`POST /append (body: {"content": "TEXT"}) - requires API token`,
	"GET  /ws (websocket command channel)",
}

func printBanner(w io.Writer, cfg domain.Config, logFile string, addr net.Addr) {
	port := cfg.Port
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = tcp.Port
	}

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Logseq HTTP Server v%s\n", cfg.Version)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Listening on: http://%s\n", net.JoinHostPort(cfg.Host, fmt.Sprint(port)))
	fmt.Fprintf(w, "Log file: %s\n", logFile)
	if cfg.APIToken != "" {
		fmt.Fprintln(w, "API Token: configured ✓")
	} else {
		fmt.Fprintln(w, "API Token: not configured (needed for /append and /append-to-journal)")
	}
	fmt.Fprintln(w, "\nEndpoints:")
	for _, e := range endpoints {
		fmt.Fprintf(w, "  %s\n", e)
	}
	fmt.Fprintln(w, "\nPress Ctrl+C to stop")
	fmt.Fprintf(w, "%s\n\n", rule)
}

func printDebugWarning(w io.Writer, logFile string) {
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintln(w, "⚠️  WARNING: DEBUG MODE ENABLED")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Full request logging is active. This will log:")
	fmt.Fprintln(w, "- All search queries")
	fmt.Fprintln(w, "- Graph names")
	fmt.Fprintln(w, "- Visited URLs")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "This creates a plain-text history of your activity.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Remember to:")
	fmt.Fprintf(w, "1. Clear logs when done: rm %s\n", logFile)
	fmt.Fprintln(w, "2. Disable debug mode after fixing your issue")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Press Ctrl+C now to abort.")
	fmt.Fprintf(w, "%s\n\n", rule)
}
