package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/flaxkv/flaxkv"
)

func openStore(cfg cliConfig) (*flaxkv.Store, error) {
	sc := flaxkv.Config{
		Path:          cfg.Path,
		FlushInterval: time.Duration(cfg.FlushIntervalMS) * time.Millisecond,
		HighWaterMark: cfg.HighWaterMark,
	}

	switch cfg.Engine {
	case "", "mmap_btree":
		sc.EngineKind = flaxkv.EngineMmapBTree
	case "lsm":
		sc.EngineKind = flaxkv.EngineLSM
	case "memory":
		sc.EngineKind = flaxkv.EngineMemory
	default:
		return nil, fmt.Errorf("unknown engine kind in config: %q", cfg.Engine)
	}

	return flaxkv.Open(sc)
}

// parseKey (and parseValue below) parses s as a flaxkv key or value: a
// quoted string ("...") is a string, true/false is a bool, otherwise it's
// parsed as an int64 then a float64, and failing both, as a raw string.
// kind, if non-empty, forces the interpretation
// (int|float|bool|string|bytes-as-hex).
func parseKey(s, kind string) (flaxkv.Key, error) {
	switch kind {
	case "int":
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return flaxkv.Key{}, err
		}

		return flaxkv.IntKey(v), nil
	case "float":
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return flaxkv.Key{}, err
		}

		return flaxkv.FloatKey(v), nil
	case "bool":
		v, err := strconv.ParseBool(s)
		if err != nil {
			return flaxkv.Key{}, err
		}

		return flaxkv.BoolKey(v), nil
	case "bytes":
		v, err := hex.DecodeString(s)
		if err != nil {
			return flaxkv.Key{}, err
		}

		return flaxkv.BytesKey(v), nil
	case "string":
		return flaxkv.StringKey(s), nil
	case "":
		return parseScalarKey(s)
	default:
		return flaxkv.Key{}, fmt.Errorf("unknown --key-kind %q", kind)
	}
}

func parseScalarKey(s string) (flaxkv.Key, error) {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return flaxkv.StringKey(s[1 : len(s)-1]), nil
	}

	if s == "true" || s == "false" {
		return flaxkv.BoolKey(s == "true"), nil
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return flaxkv.IntKey(v), nil
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return flaxkv.FloatKey(v), nil
	}

	return flaxkv.StringKey(s), nil
}

func parseValue(s, kind string) (flaxkv.Value, error) {
	switch kind {
	case "int":
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return flaxkv.Value{}, err
		}

		return flaxkv.Int64Value(v), nil
	case "float":
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return flaxkv.Value{}, err
		}

		return flaxkv.Float64Value(v), nil
	case "bool":
		v, err := strconv.ParseBool(s)
		if err != nil {
			return flaxkv.Value{}, err
		}

		return flaxkv.BoolValue(v), nil
	case "bytes":
		v, err := hex.DecodeString(s)
		if err != nil {
			return flaxkv.Value{}, err
		}

		return flaxkv.BytesValue(v), nil
	case "string":
		return flaxkv.StringValue(s), nil
	case "":
		return parseScalarValue(s)
	default:
		return flaxkv.Value{}, fmt.Errorf("unknown --value-kind %q", kind)
	}
}

func parseScalarValue(s string) (flaxkv.Value, error) {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return flaxkv.StringValue(s[1 : len(s)-1]), nil
	}

	if s == "true" || s == "false" {
		return flaxkv.BoolValue(s == "true"), nil
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return flaxkv.Int64Value(v), nil
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return flaxkv.Float64Value(v), nil
	}

	return flaxkv.StringValue(s), nil
}

func formatKey(k flaxkv.Key) string {
	switch k.Kind() {
	case flaxkv.KeyInt:
		return strconv.FormatInt(k.Int(), 10)
	case flaxkv.KeyFloat:
		return strconv.FormatFloat(k.Float(), 'g', -1, 64)
	case flaxkv.KeyBool:
		return strconv.FormatBool(k.Bool())
	case flaxkv.KeyString:
		return strconv.Quote(k.String())
	case flaxkv.KeyBytes:
		return hex.EncodeToString(k.Bytes())
	case flaxkv.KeyGroup:
		return fmt.Sprintf("%v", k.Group())
	default:
		return "<unset>"
	}
}

func formatValue(v flaxkv.Value) string {
	switch v.Kind() {
	case flaxkv.ValInt64:
		return strconv.FormatInt(v.Int(), 10)
	case flaxkv.ValFloat64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case flaxkv.ValBool:
		return strconv.FormatBool(v.Bool())
	case flaxkv.ValString:
		return strconv.Quote(v.String())
	case flaxkv.ValBytes:
		return hex.EncodeToString(v.Bytes())
	case flaxkv.ValSequence:
		return fmt.Sprintf("%v", v.Sequence())
	case flaxkv.ValMap:
		return fmt.Sprintf("%v", v.Map())
	case flaxkv.ValNDArray:
		arr := v.NDArray()

		return fmt.Sprintf("ndarray(%s, shape=%v, %d bytes)", arr.DType, arr.Shape, len(arr.Data))
	default:
		return "<unset>"
	}
}

func cmdPut(cfg cliConfig, args []string) error {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	keyKind := fs.String("key-kind", "", "int|float|bool|string|bytes")
	valueKind := fs.String("value-kind", "", "int|float|bool|string|bytes")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 2 {
		return errors.New("usage: flaxkv put <key> <value>")
	}

	k, err := parseKey(fs.Arg(0), *keyKind)
	if err != nil {
		return err
	}

	v, err := parseValue(fs.Arg(1), *valueKind)
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.Put(k, v)
}

func cmdGet(cfg cliConfig, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	keyKind := fs.String("key-kind", "", "int|float|bool|string|bytes")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return errors.New("usage: flaxkv get <key>")
	}

	k, err := parseKey(fs.Arg(0), *keyKind)
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	v, err := s.Get(k)
	if err != nil {
		return err
	}

	fmt.Println(formatValue(v))

	return nil
}

func cmdDelete(cfg cliConfig, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	keyKind := fs.String("key-kind", "", "int|float|bool|string|bytes")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return errors.New("usage: flaxkv delete <key>")
	}

	k, err := parseKey(fs.Arg(0), *keyKind)
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.Delete(k)
}

func cmdHas(cfg cliConfig, args []string) error {
	fs := flag.NewFlagSet("has", flag.ContinueOnError)
	keyKind := fs.String("key-kind", "", "int|float|bool|string|bytes")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return errors.New("usage: flaxkv has <key>")
	}

	k, err := parseKey(fs.Arg(0), *keyKind)
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ok, err := s.Contains(k)
	if err != nil {
		return err
	}

	fmt.Println(ok)

	return nil
}

func cmdLen(cfg cliConfig, args []string) error {
	fs := flag.NewFlagSet("len", flag.ContinueOnError)
	exact := fs.Bool("exact", false, "force a flush and return an exact count")

	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	var n int64

	if *exact {
		n, err = s.LenExact(context.Background())
	} else {
		n, err = s.Len()
	}

	if err != nil {
		return err
	}

	fmt.Println(n)

	return nil
}

func cmdScan(cfg cliConfig, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	start := fs.String("start", "", "inclusive lower bound key")
	end := fs.String("end", "", "exclusive upper bound key")
	keyKind := fs.String("key-kind", "", "int|float|bool|string|bytes")

	if err := fs.Parse(args); err != nil {
		return err
	}

	var startKey, endKey flaxkv.Key

	var err error

	if *start != "" {
		startKey, err = parseKey(*start, *keyKind)
		if err != nil {
			return err
		}
	}

	if *end != "" {
		endKey, err = parseKey(*end, *keyKind)
		if err != nil {
			return err
		}
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	it, err := s.Iterate(startKey, endKey)
	if err != nil {
		return err
	}
	defer it.Close()

	for it.Next() {
		k, err := it.Key()
		if err != nil {
			return err
		}

		v, err := it.Value()
		if err != nil {
			return err
		}

		fmt.Printf("%s = %s\n", formatKey(k), formatValue(v))
	}

	return it.Err()
}

func cmdFlush(cfg cliConfig, args []string) error {
	fs := flag.NewFlagSet("flush", flag.ContinueOnError)
	timeout := fs.Duration("timeout", 30*time.Second, "max time to wait")

	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	return s.FlushNow(ctx)
}

func cmdStat(cfg cliConfig, args []string) error {
	fs := flag.NewFlagSet("stat", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.Len()
	if err != nil {
		return err
	}

	fmt.Printf("path=%s engine=%s entries~=%d\n", cfg.Path, cfg.Engine, n)

	return nil
}
