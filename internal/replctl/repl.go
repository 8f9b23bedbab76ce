// Package replctl is an interactive stepper for pkg/cache: a REPL that
// drives one access at a time against a live variant.Cache and prints the
// resulting occupancy, for debugging a configuration or a single confusing
// trace line by hand. It is a debug aid, not part of the simulator core.
package replctl

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/peterh/liner"
	"golang.org/x/sys/unix"

	"github.com/llcsim/approxcache/pkg/cache/req"
	"github.com/llcsim/approxcache/pkg/cache/variant"
)

// defaultTermWidth is used when the terminal width can't be queried, e.g.
// when stdout is redirected to a file or pipe.
const defaultTermWidth = 80

// termWidth queries the controlling terminal's column width via an ioctl,
// for wrapping the stats table to fit (spec.md §6-adjacent debug tooling;
// this has no bearing on simulation semantics).
func termWidth() int {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 {
		return defaultTermWidth
	}
	return int(ws.Col)
}

var commands = []string{
	"access", "retry", "stats", "advance", "help", "exit", "quit", "q",
}

// REPL is the interactive stepper loop.
type REPL struct {
	cache variant.Cache
	cycle req.Cycle
	out   io.Writer
	liner *liner.State
}

// New builds a REPL driving c, starting at cycle 0.
func New(c variant.Cache, out io.Writer) *REPL {
	return &REPL{cache: c, out: out}
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".simcache_repl_history")
}

// Run starts the REPL loop, reading commands until exit, quit, q, or EOF.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Fprintln(r.out, "simcache repl - type 'help' for commands")

	for {
		line, err := r.liner.Prompt(fmt.Sprintf("sim[%d]> ", r.cycle))
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Fprintln(r.out, "\nbye")
				break
			}
			return fmt.Errorf("replctl: read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		fields := strings.Fields(line)
		cmd := strings.ToLower(fields[0])
		args := fields[1:]

		switch cmd {
		case "exit", "quit", "q":
			r.saveHistory()
			return nil
		case "help", "?":
			r.printHelp()
		case "access":
			r.cmdAccess(args)
		case "retry":
			r.cmdRetry()
		case "stats":
			r.cmdStats()
		case "advance":
			r.cmdAdvance(args)
		default:
			fmt.Fprintf(r.out, "unknown command: %s (type 'help')\n", cmd)
		}
	}

	r.saveHistory()
	return nil
}

func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) completer(line string) []string {
	var out []string
	lower := strings.ToLower(line)
	for _, c := range commands {
		if strings.HasPrefix(c, lower) {
			out = append(out, c)
		}
	}
	return out
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, "commands:")
	fmt.Fprintln(r.out, "  access <type> <addr-hex> [payload-hex]   drive one request (type: gets|getx|puts|putx)")
	fmt.Fprintln(r.out, "  retry                                    drain any requests parked on the mshr pool")
	fmt.Fprintln(r.out, "  stats                                    print current occupancy")
	fmt.Fprintln(r.out, "  advance <n>                              bump the current cycle by n")
	fmt.Fprintln(r.out, "  help                                     show this help")
	fmt.Fprintln(r.out, "  exit / quit / q                          leave the repl")
}

func (r *REPL) cmdAccess(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(r.out, "usage: access <type> <addr-hex> [payload-hex]")
		return
	}

	typ, err := parseType(args[0])
	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}

	addr, err := strconv.ParseUint(strings.TrimPrefix(args[1], "0x"), 16, 64)
	if err != nil {
		fmt.Fprintf(r.out, "error: bad address: %v\n", err)
		return
	}

	var payload []byte
	if len(args) >= 3 {
		payload, err = parsePayload(args[2])
		if err != nil {
			fmt.Fprintf(r.out, "error: bad payload: %v\n", err)
			return
		}
	}

	request := req.MemReq{Cycle: r.cycle, LineAddr: req.Address(addr), Type: typ}
	res, accessErr := r.cache.Access(&request, payload)
	if accessErr != nil {
		fmt.Fprintf(r.out, "parked: %v\n", accessErr)
		return
	}

	fmt.Fprintf(r.out, "%-5s %s  hit=%-5v resp-cycle=%d\n", typ, formatAddr(req.Address(addr)), res.Hit, res.RespCycle)
}

func (r *REPL) cmdRetry() {
	results := r.cache.Retry(r.cycle)
	if len(results) == 0 {
		fmt.Fprintln(r.out, "(nothing ready)")
		return
	}
	for _, res := range results {
		fmt.Fprintf(r.out, "retried %s  hit=%-5v resp-cycle=%d\n", formatAddr(res.Req.LineAddr), res.Hit, res.RespCycle)
	}
}

func (r *REPL) cmdAdvance(args []string) {
	n := req.Cycle(1)
	if len(args) >= 1 {
		parsed, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
			return
		}
		n = req.Cycle(parsed)
	}
	r.cycle += n
	fmt.Fprintf(r.out, "cycle now %d\n", r.cycle)
}

func (r *REPL) cmdStats() {
	s := r.cache.Stats()
	rows := [][2]string{
		{"valid tag lines", strconv.FormatUint(uint64(s.ValidTagLines), 10)},
		{"valid tag segments", strconv.FormatUint(uint64(s.ValidTagSegments), 10)},
		{"valid data lines", strconv.Itoa(s.ValidDataLines)},
	}

	width := 0
	for _, row := range rows {
		if w := runewidth.StringWidth(row[0]); w > width {
			width = w
		}
	}

	limit := termWidth()
	for _, row := range rows {
		pad := width - runewidth.StringWidth(row[0])
		line := fmt.Sprintf("%s%s : %s", row[0], strings.Repeat(" ", pad), row[1])
		fmt.Fprintln(r.out, runewidth.Truncate(line, limit, "…"))
	}
}

func formatAddr(a req.Address) string {
	return fmt.Sprintf("0x%x", uint64(a))
}

func parseType(s string) (req.Type, error) {
	switch strings.ToLower(s) {
	case "gets":
		return req.GETS, nil
	case "getx":
		return req.GETX, nil
	case "puts":
		return req.PUTS, nil
	case "putx":
		return req.PUTX, nil
	default:
		return 0, fmt.Errorf("unknown type %q (want gets|getx|puts|putx)", s)
	}
}

func parsePayload(s string) ([]byte, error) {
	if s == "-" {
		return nil, nil
	}
	return hex.DecodeString(s)
}
