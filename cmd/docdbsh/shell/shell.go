// Package shell implements the interactive commands docdbsh accepts: open
// and close a session, submit a raw query envelope, and inspect node stats.
package shell

import (
	"fmt"
	"io"

	"github.com/kartikbazzad/queryterm/cmd/docdbsh/parser"
	"github.com/kartikbazzad/queryterm/pkg/client"
)

// Shell holds the one open connection and, once opened, the one session
// docdbsh submits queries against.
type Shell struct {
	client    *client.Client
	sessionID uint64
	label     string
}

func NewShell(socketPath string) (*Shell, error) {
	return &Shell{client: client.New(socketPath)}, nil
}

func (s *Shell) Connect() error {
	return s.client.Connect()
}

func (s *Shell) Close() error {
	if s.sessionID != 0 {
		_ = s.client.CloseSession(s.sessionID)
	}
	return s.client.Close()
}

// Result is what a docdbsh command produces: either lines of output, or a
// request to exit the read loop.
type Result struct {
	exit  bool
	lines []string
	err   error
}

func (r *Result) IsExit() bool { return r.exit }

func (r *Result) Print(w io.Writer) {
	if r.err != nil {
		fmt.Fprintln(w, "ERROR")
		fmt.Fprintln(w, r.err.Error())
		return
	}
	for _, line := range r.lines {
		fmt.Fprintln(w, line)
	}
}

func errResult(err error) *Result      { return &Result{err: err} }
func okResult(lines ...string) *Result { return &Result{lines: lines} }

func (s *Shell) Execute(cmd *parser.Command) *Result {
	switch cmd.Name {
	case ".open":
		label := ""
		if len(cmd.Args) > 0 {
			label = cmd.Args[0]
		}
		id, err := s.client.OpenSession(label)
		if err != nil {
			return errResult(err)
		}
		s.sessionID = id
		s.label = label
		return okResult(fmt.Sprintf("session %d opened", id))

	case ".close":
		if err := parser.ValidateSession(s.sessionID); err != nil {
			return errResult(err)
		}
		if err := s.client.CloseSession(s.sessionID); err != nil {
			return errResult(err)
		}
		id := s.sessionID
		s.sessionID = 0
		return okResult(fmt.Sprintf("session %d closed", id))

	case ".exec":
		if err := parser.ValidateSession(s.sessionID); err != nil {
			return errResult(err)
		}
		if err := parser.ValidateArgs(cmd, 1); err != nil {
			return errResult(err)
		}
		envelope, err := parser.DecodePayload(joinArgs(cmd))
		if err != nil {
			return errResult(err)
		}
		data, err := s.client.Execute(s.sessionID, envelope)
		if err != nil {
			return errResult(err)
		}
		return okResult(string(data))

	case ".stats":
		stats, err := s.client.Stats()
		if err != nil {
			return errResult(err)
		}
		return okResult(
			fmt.Sprintf("active sessions:     %d", stats.ActiveSessions),
			fmt.Sprintf("outstanding queries: %d", stats.OutstandingQueries),
			fmt.Sprintf("parse errors:        %d", stats.ParseErrors),
			fmt.Sprintf("archive errors:      %d", stats.ArchiveErrors),
			fmt.Sprintf("term arena bytes:    %d", stats.TermArenaBytes),
		)

	case ".info":
		data, err := s.client.ServerInfo()
		if err != nil {
			return errResult(err)
		}
		return okResult(string(data))

	case ".metrics":
		data, err := s.client.Metrics()
		if err != nil {
			return errResult(err)
		}
		return okResult(string(data))

	case ".help":
		return okResult(
			".open [label]     open a session",
			".close            close the current session",
			".exec <envelope>  submit a raw JSON query envelope",
			".stats            print node-wide counters",
			".info             print server info",
			".metrics          print Prometheus-format metrics",
			".exit / .quit     leave the shell",
		)

	case ".exit", ".quit":
		return &Result{exit: true}

	default:
		return errResult(fmt.Errorf("unknown command: %s", cmd.Name))
	}
}

func joinArgs(cmd *parser.Command) string {
	rest := cmd.Line[len(cmd.Name):]
	return trimLeadingSpace(rest)
}

func trimLeadingSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	return s
}
