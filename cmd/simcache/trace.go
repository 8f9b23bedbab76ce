package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/llcsim/approxcache/pkg/cache/req"
)

// traceEntry is one line of an access trace: cycle, message type, line
// address, source id, and an optional payload (hex-encoded, "-" for none).
//
// Format (whitespace-separated, '#' starts a comment):
//
//	<cycle> <type> <addr-hex> <src-id> <payload-hex|->
//
// e.g. "100 GETS 0x1000 0 -" or "340 PUTX 0x2040 1 00ff00ff...".
type traceEntry struct {
	req     req.MemReq
	payload []byte
}

// readTrace parses every non-comment, non-blank line of r into a traceEntry.
func readTrace(r io.Reader) ([]traceEntry, error) {
	var out []traceEntry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := parseTraceLine(line)
		if err != nil {
			return nil, fmt.Errorf("trace line %d: %w", lineNo, err)
		}
		out = append(out, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("trace: scan: %w", err)
	}
	return out, nil
}

func parseTraceLine(line string) (traceEntry, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return traceEntry{}, fmt.Errorf("want 5 fields, got %d: %q", len(fields), line)
	}

	cycle, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return traceEntry{}, fmt.Errorf("cycle: %w", err)
	}

	typ, err := parseType(fields[1])
	if err != nil {
		return traceEntry{}, err
	}

	addr, err := strconv.ParseUint(strings.TrimPrefix(fields[2], "0x"), 16, 64)
	if err != nil {
		return traceEntry{}, fmt.Errorf("addr: %w", err)
	}

	src, err := strconv.ParseInt(fields[3], 10, 32)
	if err != nil {
		return traceEntry{}, fmt.Errorf("src-id: %w", err)
	}

	var payload []byte
	if fields[4] != "-" {
		payload, err = hex.DecodeString(fields[4])
		if err != nil {
			return traceEntry{}, fmt.Errorf("payload: %w", err)
		}
	}

	return traceEntry{
		req: req.MemReq{
			Cycle:    req.Cycle(cycle),
			LineAddr: req.Address(addr),
			Type:     typ,
			SrcID:    int32(src),
		},
		payload: payload,
	}, nil
}

func parseType(s string) (req.Type, error) {
	switch strings.ToUpper(s) {
	case "GETS":
		return req.GETS, nil
	case "GETX":
		return req.GETX, nil
	case "PUTS":
		return req.PUTS, nil
	case "PUTX":
		return req.PUTX, nil
	default:
		return 0, fmt.Errorf("unknown message type %q", s)
	}
}
