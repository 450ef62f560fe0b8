// Command flaxkv is a playground CLI for the flaxkv package.
//
// Usage:
//
//	flaxkv put <key> <value>
//	flaxkv get <key>
//	flaxkv delete <key>
//	flaxkv has <key>
//	flaxkv len
//	flaxkv scan [--start=<key>] [--end=<key>]
//	flaxkv flush
//	flaxkv stat
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Println(usage())

		return nil
	}

	cfg, err := loadCLIConfig(configFilePath())
	if err != nil {
		return err
	}

	switch args[0] {
	case "put":
		return cmdPut(cfg, args[1:])
	case "get":
		return cmdGet(cfg, args[1:])
	case "delete", "rm":
		return cmdDelete(cfg, args[1:])
	case "has":
		return cmdHas(cfg, args[1:])
	case "len":
		return cmdLen(cfg, args[1:])
	case "scan":
		return cmdScan(cfg, args[1:])
	case "flush":
		return cmdFlush(cfg, args[1:])
	case "stat":
		return cmdStat(cfg, args[1:])
	case "help", "-h", "--help":
		fmt.Println(usage())

		return nil
	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage())
	}
}

func configFilePath() string {
	if p := os.Getenv("FLAXKV_CONFIG"); p != "" {
		return p
	}

	return ".flaxkv.json"
}

func usage() string {
	return `flaxkv playground CLI

Commands:
  put <key> <value>                Stage a write
  get <key>                        Read a value
  delete, rm <key>                 Stage a tombstone
  has <key>                        Report whether a key exists
  len                              Best-effort entry count
  scan [--start=K] [--end=K]       List keys in [start, end)
  flush                            Block until pending writes are durable
  stat                             Print engine occupancy

Unquoted keys and values are parsed as bool (true/false), then int64, then
float64, and otherwise taken as a string; quoted ones are strings, e.g.
put 42 '"hello"' parses the key as int64(42) and the value as the string
"hello". Use --key-kind/--value-kind to force a kind explicitly
(int|float|bool|string|bytes).

Config: ./.flaxkv.json (JSON with comments), or $FLAXKV_CONFIG`
}
