// Command zipinfo lists, extracts, and copies entries of ZIP archives read
// from local files or HTTP URLs.
//
//	zipinfo [-l] archive.zip
//	zipinfo -x name [-o out] archive.zip
//	zipinfo -d dir [-prefix p] https://example.com/archive.zip
//
// Defaults are read from ZIPINFO_* environment variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/meigma/ziparchive"
	"github.com/meigma/ziparchive/cache"
	ziphttp "github.com/meigma/ziparchive/http"
	"github.com/meigma/ziparchive/internal/pathutil"
)

// envConfig holds defaults taken from the environment.
type envConfig struct {
	VerifyCRC  bool          `envconfig:"VERIFY_CRC" default:"true"`
	Workers    int           `envconfig:"WORKERS" default:"0"`
	Map        bool          `envconfig:"MAP" default:"true"`
	CacheBytes int64         `envconfig:"CACHE_BYTES" default:"67108864"`
	BlockSize  int64         `envconfig:"BLOCK_SIZE" default:"65536"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"30s"`
}

type config struct {
	envConfig

	list    bool
	extract string
	output  string
	dir     string
	prefix  string
	verbose bool
	target  string
}

func main() {
	if err := run(parseFlags(), os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// run opens the target and performs the requested action, writing
// listings to out.
func run(cfg config, out io.Writer) error {
	level := slog.LevelWarn
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	a, err := openArchive(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case cfg.extract != "":
		return extractEntry(a, cfg.extract, cfg.output)
	case cfg.dir != "":
		return a.CopyDir(cfg.dir, cfg.prefix,
			ziparchive.CopyWithWorkers(cfg.Workers),
			ziparchive.CopyWithPreserveMode(true),
			ziparchive.CopyWithPreserveTimes(true),
		)
	default:
		return writeListing(out, a, cfg.target, cfg.list)
	}
}

func parseFlags() config {
	var cfg config
	if err := envconfig.Process("zipinfo", &cfg.envConfig); err != nil {
		log.Fatal(err)
	}

	flag.BoolVar(&cfg.list, "l", false, "print a header and totals around the listing")
	flag.StringVar(&cfg.extract, "x", "", "extract the named entry")
	flag.StringVar(&cfg.output, "o", "", "output path for -x (default: base name of the entry)")
	flag.StringVar(&cfg.dir, "d", "", "copy entries into this directory")
	flag.StringVar(&cfg.prefix, "prefix", "", "only copy entries under this directory prefix")
	flag.BoolVar(&cfg.verbose, "v", false, "enable debug logging")
	flag.BoolVar(&cfg.VerifyCRC, "crc", cfg.VerifyCRC, "verify CRC-32 of extracted data")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "copy workers (0 = automatic, <0 = serial)")
	flag.BoolVar(&cfg.Map, "map", cfg.Map, "memory-map local archives")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <archive path or URL>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	cfg.target = flag.Arg(0)
	if cfg.extract != "" && cfg.dir != "" {
		log.Fatal("-x and -d are mutually exclusive")
	}
	return cfg
}

func isURL(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}

func openArchive(cfg config, logger *slog.Logger) (*ziparchive.Archive, error) {
	opts := []ziparchive.Option{
		ziparchive.WithLogger(logger),
		ziparchive.WithDebugName(cfg.target),
		ziparchive.WithVerifyCRC(cfg.VerifyCRC),
		ziparchive.WithMapArchive(cfg.Map),
	}
	if !isURL(cfg.target) {
		return ziparchive.Open(cfg.target, opts...)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	remote, err := ziphttp.NewSource(ctx, cfg.target, ziphttp.WithLogger(logger), ziphttp.WithConditionalHeaders())
	if err != nil {
		return nil, err
	}
	blocks := cache.New(
		cache.WithMaxBytes(cfg.CacheBytes),
		cache.WithBlockSize(cfg.BlockSize),
	)
	src, err := blocks.Wrap(remote)
	if err != nil {
		_ = remote.Close()
		return nil, err
	}
	return ziparchive.OpenSource(src, opts...)
}

func extractEntry(a *ziparchive.Archive, name, output string) error {
	e, err := a.FindEntry(name)
	if err != nil {
		return err
	}
	if output == "" {
		output = pathutil.Base(name)
	}
	f, err := os.OpenFile(output, os.O_RDWR|os.O_CREATE|os.O_TRUNC, e.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	if err := a.ExtractToFile(e, f); err != nil {
		_ = f.Close()
		_ = os.Remove(output)
		return err
	}
	return f.Close()
}
