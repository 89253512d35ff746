package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/myuser/lexkv/internal/engine"
)

// Console protocol replies. Writes answer OK, absent lookups answer
// NULL, and RANGE output is closed by the END sentinel.
const (
	replyOK   = "OK"
	replyNull = "NULL"
	replyEnd  = "END"
)

// runConsole reads one command per line and processes it to completion
// before reading the next. It is thin glue: arity checks happen here,
// everything with semantics is delegated to the engine.
func runConsole(eng *engine.Engine, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if quit := dispatch(eng, line, out); quit {
			return nil
		}
	}
	return scanner.Err()
}

// dispatch handles one command line and reports whether the session ends.
func dispatch(eng *engine.Engine, line string, out io.Writer) bool {
	fields := strings.Fields(line)
	cmd := strings.ToUpper(fields[0])
	args := fields[1:]

	switch cmd {
	case "EXIT":
		return true

	case "SET":
		// The value is the raw remainder of the line, spaces included.
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			argErr(out, cmd)
			return false
		}
		reply(out, eng.Set(parts[1], parts[2]))

	case "GET":
		if len(args) != 1 {
			argErr(out, cmd)
			return false
		}
		if val, ok := eng.Get(args[0]); ok {
			fmt.Fprintln(out, val)
		} else {
			fmt.Fprintln(out, replyNull)
		}

	case "DEL":
		if len(args) != 1 {
			argErr(out, cmd)
			return false
		}
		n, err := eng.Del(args[0])
		replyInt(out, n, err)

	case "EXISTS":
		if len(args) != 1 {
			argErr(out, cmd)
			return false
		}
		n := 0
		if eng.Exists(args[0]) {
			n = 1
		}
		fmt.Fprintln(out, n)

	case "MSET":
		reply(out, eng.MSet(args...))

	case "MGET":
		if len(args) == 0 {
			argErr(out, cmd)
			return false
		}
		for _, lk := range eng.MGet(args...) {
			if lk.Found {
				fmt.Fprintln(out, lk.Value)
			} else {
				fmt.Fprintln(out, replyNull)
			}
		}

	case "EXPIRE":
		if len(args) != 2 {
			argErr(out, cmd)
			return false
		}
		ttlMs, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fmt.Fprintln(out, "ERR value is not an integer")
			return false
		}
		n, err := eng.Expire(args[0], ttlMs)
		replyInt(out, n, err)

	case "TTL":
		if len(args) != 1 {
			argErr(out, cmd)
			return false
		}
		fmt.Fprintln(out, eng.TTL(args[0]))

	case "PERSIST":
		if len(args) != 1 {
			argErr(out, cmd)
			return false
		}
		n, err := eng.Persist(args[0])
		replyInt(out, n, err)

	case "RANGE":
		if len(args) > 2 {
			argErr(out, cmd)
			return false
		}
		start, end := "", ""
		if len(args) > 0 {
			start = args[0]
		}
		if len(args) > 1 {
			end = args[1]
		}
		for _, key := range eng.Range(start, end) {
			fmt.Fprintln(out, key)
		}
		fmt.Fprintln(out, replyEnd)

	case "BEGIN":
		reply(out, eng.Begin())

	case "COMMIT":
		reply(out, eng.Commit())

	case "ABORT":
		reply(out, eng.Abort())

	default:
		fmt.Fprintf(out, "ERR unknown command '%s'\n", fields[0])
	}
	return false
}

func reply(out io.Writer, err error) {
	if err != nil {
		fmt.Fprintf(out, "ERR %v\n", err)
		return
	}
	fmt.Fprintln(out, replyOK)
}

func replyInt(out io.Writer, n int, err error) {
	if err != nil {
		fmt.Fprintf(out, "ERR %v\n", err)
		return
	}
	fmt.Fprintln(out, n)
}

func argErr(out io.Writer, cmd string) {
	fmt.Fprintf(out, "ERR wrong number of arguments for '%s'\n", strings.ToLower(cmd))
}
