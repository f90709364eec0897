package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/mr-karan/caskdb/pkg/cask"
	flag "github.com/spf13/pflag"
	"github.com/zerodha/logf"
)

const help = `Commands:
  put <key> <value>   store a value, quote arguments containing spaces
  get <key>           print the value of a key
  len                 number of keys
  sync                fsync the active segment
  help                show this message
  exit                quit`

func main() {
	var (
		dir      = flag.String("dir", "./data", "Directory of the store.")
		capacity = flag.Int("capacity", 1000, "Max number of records in a segment.")
		replay   = flag.Bool("replay", true, "Rebuild the index from the segments on disk.")
		debug    = flag.Bool("debug", false, "Enable debug logging.")
	)
	flag.Parse()

	cfg := []cask.Config{cask.WithCapacity(*capacity)}
	if *replay {
		cfg = append(cfg, cask.WithReplay())
	}
	if *debug {
		cfg = append(cfg, cask.WithDebug())
	}

	store, err := cask.Open(*dir, cfg...)
	if err != nil {
		logf.New(logf.Opts{}).Fatal("error opening store", "dir", *dir, "error", err)
	}
	defer store.Close()

	fmt.Printf("Opened %s. Type 'help' for information or 'exit' to quit.\n", *dir)
	run(store, os.Stdin, os.Stdout)
}

// run reads commands line by line until EOF or exit.
func run(store *cask.Cask, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		args, err := shellquote.Split(line)
		if err != nil {
			fmt.Fprintln(out, "parse error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		args[0] = strings.ToLower(args[0])
		if args[0] == "exit" {
			return
		}

		fmt.Fprintln(out, execute(store, args))
	}
}

func execute(store *cask.Cask, args []string) string {
	switch args[0] {
	case "put":
		if len(args) != 3 {
			return "usage: put <key> <value>"
		}
		if err := store.Put(args[1], []byte(args[2])); err != nil {
			return "error: " + err.Error()
		}
		return "OK"

	case "get":
		if len(args) != 2 {
			return "usage: get <key>"
		}
		val, err := store.Get(args[1])
		if errors.Is(err, cask.ErrKeyNotFound) {
			return "(nil)"
		}
		if err != nil {
			return "error: " + err.Error()
		}
		return shellquote.Join(string(val))

	case "len":
		return fmt.Sprint(store.Len())

	case "sync":
		if err := store.Sync(); err != nil {
			return "error: " + err.Error()
		}
		return "OK"

	case "help":
		return help
	}

	return fmt.Sprintf("unknown command %q, type 'help'", args[0])
}
