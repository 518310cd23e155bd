package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"
	bolt "go.etcd.io/bbolt"

	"github.com/metcalfc/folio/internal/config"
	"github.com/metcalfc/folio/internal/library"
	"github.com/metcalfc/folio/internal/logging"
	"github.com/metcalfc/folio/internal/reader"
	"github.com/metcalfc/folio/internal/state"
	"github.com/metcalfc/folio/internal/storage"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errUsage means the command line was wrong; usage has been printed.
var errUsage = errors.New("usage")

func usage(w io.Writer, fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintf(w, "Folio - Document Library and Paged Reader\n\n")
		fmt.Fprintf(w, "Usage:\n")
		fmt.Fprintf(w, "  folio [options] <command> [arguments]\n\n")
		fmt.Fprintf(w, "Options:\n")
		fs.SetOutput(w)
		fs.PrintDefaults()
		fmt.Fprintf(w, "\nCommands:\n")
		fmt.Fprintf(w, "  import [-title T] [-author A] FILE   Extract a PDF or EPUB into the library\n")
		fmt.Fprintf(w, "  list                                 List books\n")
		fmt.Fprintf(w, "  page [-u USER] [-p N] ID             Print a page as JSON\n")
		fmt.Fprintf(w, "  read [-u USER] [-p N] ID             Read a book in the terminal\n")
		fmt.Fprintf(w, "  contents ID                          Show the table of contents\n")
		fmt.Fprintf(w, "  progress [-u USER] ID [PAGE]         Show or set the saved page\n")
		fmt.Fprintf(w, "  delete ID                            Remove a book and its progress\n")
		fmt.Fprintf(w, "  forget USER                          Remove a user's progress\n")
		fmt.Fprintf(w, "\nFormats:\n")
		for _, f := range reader.NewExtractor(reader.Options{}).SupportedFormats() {
			fmt.Fprintf(w, "  %s\n", f)
		}
		fmt.Fprintf(w, "\nControls (read):\n")
		fmt.Fprintf(w, "  n/→/PgDn  Next page\n")
		fmt.Fprintf(w, "  p/←/PgUp  Previous page\n")
		fmt.Fprintf(w, "  g/G       First/last page\n")
		fmt.Fprintf(w, "  ↑/↓       Scroll\n")
		fmt.Fprintf(w, "  Q         Quit\n")
	}
}

// app is everything a command needs, opened from the configuration.
type app struct {
	cfg    *config.Config
	svc    *library.Service
	logger *zap.Logger
	db     *bolt.DB
}

func openApp(cfgPath string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewWithWriter(logOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}

	var tracker state.Tracker
	switch cfg.Progress.Backend {
	case config.BackendFile:
		tracker, err = state.NewFileStore(cfg.DataDir)
		if err != nil {
			db.Close()
			return nil, err
		}
	default:
		tracker = state.NewBoltStore(db)
	}

	extractor := reader.NewExtractor(reader.Options{
		ParagraphGap: cfg.PDF.ParagraphGap,
		LineGap:      cfg.PDF.LineGap,
		Workers:      cfg.EPUB.Workers,
		Logger:       logger,
	})
	svc := library.NewService(library.NewBoltStore(db), tracker, extractor, cfg.PageSize, cfg.UploadDir(), logger)

	logger.Debug("library opened",
		zap.String("db", cfg.DBPath()),
		zap.String("progress", cfg.Progress.Backend),
		zap.Int("page_size", cfg.PageSize))
	return &app{cfg: cfg, svc: svc, logger: logger, db: db}, nil
}

func (a *app) Close() error {
	a.logger.Sync()
	return a.db.Close()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("folio", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "Config file (default: $XDG_CONFIG_HOME/folio/config.yaml)")
	showVersion := fs.Bool("v", false, "Show version information")
	showVersionLong := fs.Bool("version", false, "Show version information")
	fs.Usage = usage(stderr, fs)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	if *showVersion || *showVersionLong {
		fmt.Fprintf(stdout, "folio %s (commit: %s, built: %s)\n", version, commit, date)
		return nil
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	handler, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown command %q\n", cmd)
		fmt.Fprintln(stderr, "Try: folio -h")
		return errUsage
	}

	a, err := openApp(*cfgPath, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	return handler(ctx, a, rest, stdout, stderr)
}

type command func(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error

var commands = map[string]command{
	"import":   cmdImport,
	"list":     cmdList,
	"page":     cmdPage,
	"read":     cmdRead,
	"contents": cmdContents,
	"progress": cmdProgress,
	"delete":   cmdDelete,
	"forget":   cmdForget,
}

// subFlags parses a command's flags and checks the positional argument
// count is within [minArgs, maxArgs].
func subFlags(name string, stderr io.Writer, args []string, minArgs, maxArgs int, define func(fs *flag.FlagSet)) (*flag.FlagSet, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	if define != nil {
		define(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	if fs.NArg() < minArgs || fs.NArg() > maxArgs {
		fmt.Fprintf(stderr, "Error: %s takes %s\n", name, argCount(minArgs, maxArgs))
		return nil, errUsage
	}
	return fs, nil
}

func argCount(minArgs, maxArgs int) string {
	if minArgs == maxArgs {
		return fmt.Sprintf("%d argument(s)", minArgs)
	}
	return fmt.Sprintf("%d to %d arguments", minArgs, maxArgs)
}

func cmdImport(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	var title, author string
	fs, err := subFlags("import", stderr, args, 1, 1, func(fs *flag.FlagSet) {
		fs.StringVar(&title, "title", "", "Book title (default: from the document)")
		fs.StringVar(&author, "author", "", "Book author (default: from the document)")
	})
	if err != nil {
		return err
	}

	path := fs.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %w", path, err)
	}
	defer f.Close()

	book, err := a.svc.Upload(ctx, filepath.Base(path), f, library.Meta{Title: title, Author: author})
	if errors.Is(err, reader.ErrUnsupportedFormat) {
		fmt.Fprintf(stderr, "Supported formats: %s\n", strings.Join(a.svc.Formats(), ", "))
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s\t%s\n", book.ID, book.Title)
	for _, w := range book.Warnings {
		fmt.Fprintf(stderr, "warning: %s %d: %s\n", w.Unit, w.Index, w.Message)
	}
	return nil
}

func cmdList(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	if _, err := subFlags("list", stderr, args, 0, 0, nil); err != nil {
		return err
	}
	books, err := a.svc.Books(ctx)
	if err != nil {
		return err
	}
	if len(books) == 0 {
		fmt.Fprintln(stdout, "No books.")
		return nil
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tFORMAT\tADDED")
	for _, b := range books {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.ID, b.Title, b.Author, b.Format, b.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func cmdPage(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	var user string
	var page int
	fs, err := subFlags("page", stderr, args, 1, 1, func(fs *flag.FlagSet) {
		fs.StringVar(&user, "u", a.cfg.User, "User ID")
		fs.IntVar(&page, "p", 0, "Page number (default: saved page)")
	})
	if err != nil {
		return err
	}

	resp, err := a.svc.Read(ctx, user, fs.Arg(0), page)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func cmdRead(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	var user string
	var page int
	fs, err := subFlags("read", stderr, args, 1, 1, func(fs *flag.FlagSet) {
		fs.StringVar(&user, "u", a.cfg.User, "User ID")
		fs.IntVar(&page, "p", 0, "Page number (default: saved page)")
	})
	if err != nil {
		return err
	}

	// Fail before entering the alternate screen.
	if _, err := a.svc.Book(ctx, fs.Arg(0)); err != nil {
		return err
	}
	return runPager(ctx, a.svc, user, fs.Arg(0), page)
}

func cmdContents(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	fs, err := subFlags("contents", stderr, args, 1, 1, nil)
	if err != nil {
		return err
	}
	entries, err := a.svc.Contents(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(stdout, "No contents.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(stdout, "%5d  %s%s\n", e.Page, strings.Repeat("  ", e.Level), e.Title)
	}
	return nil
}

func cmdProgress(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	var user string
	fs, err := subFlags("progress", stderr, args, 1, 2, func(fs *flag.FlagSet) {
		fs.StringVar(&user, "u", a.cfg.User, "User ID")
	})
	if err != nil {
		return err
	}

	bookID := fs.Arg(0)
	if fs.NArg() == 2 {
		page, err := strconv.Atoi(fs.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid page %q: %w", fs.Arg(1), err)
		}
		if err := a.svc.SetProgress(ctx, user, bookID, page); err != nil {
			return err
		}
	}

	page, err := a.svc.Progress(ctx, user, bookID)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, page)
	return nil
}

func cmdDelete(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	fs, err := subFlags("delete", stderr, args, 1, 1, nil)
	if err != nil {
		return err
	}
	return a.svc.Delete(ctx, fs.Arg(0))
}

func cmdForget(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	fs, err := subFlags("forget", stderr, args, 1, 1, nil)
	if err != nil {
		return err
	}
	return a.svc.DeleteUser(ctx, fs.Arg(0))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
