package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"design_vault/internal/domain/models"
	"design_vault/internal/lib/logger/handlers/slogpretty"
	"design_vault/internal/vault"

	"github.com/fatih/color"
)

const defaultURL = "http://localhost:8080"

const usage = `usage: vaultctl <command> [arguments]

commands:
  list    [-q query] [-type image,gif,video] [-tags a,b|__no_tags__] [-mode recent|random|no-tag] [-sort date] [-order desc]
  tags
  tag     add|rm <id> <tag>
  rename  <id> <title>
  delete  <id>...
  upload  [-tags a,b] [-suggest] <file>...

env:
  VAULT_URL  server address, default ` + defaultURL + `
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := setupLogger()

	baseURL := os.Getenv("VAULT_URL")
	if baseURL == "" {
		baseURL = defaultURL
	}

	if err := run(ctx, log, vault.NewHTTPGateway(baseURL, nil), os.Args[1], os.Args[2:]); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, gw vault.Gateway, cmd string, args []string) error {
	switch cmd {
	case "list":
		return list(ctx, log, gw, args)
	case "tags":
		return tags(ctx, gw)
	case "tag":
		return tag(ctx, log, gw, args)
	case "rename":
		if len(args) != 2 {
			return fmt.Errorf("rename: expected <id> <title>")
		}
		s, err := full(ctx, log, gw)
		if err != nil {
			return err
		}
		defer s.Wait()
		return s.Rename(args[0], args[1]).Wait(ctx)
	case "delete":
		if len(args) == 0 {
			return fmt.Errorf("delete: expected at least one id")
		}
		return remove(ctx, log, gw, args)
	case "upload":
		return upload(ctx, log, gw, args)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

func start(ctx context.Context, log *slog.Logger, gw vault.Gateway, opts ...vault.Option) (*vault.Session, error) {
	s := vault.NewSession(ctx, log, gw, opts...)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func list(ctx context.Context, log *slog.Logger, gw vault.Gateway, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	query := fs.String("q", "", "text filter")
	types := fs.String("type", "", "comma separated file types")
	tagList := fs.String("tags", "", "comma separated tags")
	mode := fs.String("mode", string(models.GalleryRecent), "gallery mode")
	sortBy := fs.String("sort", string(models.SortByDate), "sort field")
	order := fs.String("order", string(models.SortDesc), "sort order")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := start(ctx, log, gw)
	if err != nil {
		return err
	}
	defer s.Close()

	filters := models.FilterState{
		SelectedTags: splitList(*tagList),
		SortBy:       models.SortBy(*sortBy),
		SortOrder:    models.SortOrder(*order),
	}
	for _, t := range splitList(*types) {
		filters.FileTypes = append(filters.FileTypes, models.FileType(t))
	}

	if err := s.SetFilters(ctx, filters); err != nil {
		return err
	}
	if err := s.SetGalleryMode(ctx, models.GalleryMode(*mode)); err != nil {
		return err
	}
	if err := s.SetQuery(ctx, *query); err != nil {
		return err
	}

	v := s.View()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tTYPE\tSIZE\tTAGS")
	for _, item := range v.DisplayItems {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", item.ID, item.Title, item.Type, item.FileSize, color.CyanString(strings.Join(item.Tags, ", ")))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d shown, %d total, %d without tags (%s)\n", len(v.DisplayItems), v.TotalCount, v.NoTagCount, v.LoadMode)

	return nil
}

func tags(ctx context.Context, gw vault.Gateway) error {
	all, err := gw.AllTags(ctx)
	if err != nil {
		return err
	}
	n, err := gw.NoTagCount(ctx)
	if err != nil {
		return err
	}

	for _, t := range all {
		fmt.Println(t)
	}
	fmt.Printf("\n%d tags, %d files without tags\n", len(all), n)

	return nil
}

func tag(ctx context.Context, log *slog.Logger, gw vault.Gateway, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("tag: expected add|rm <id> <tag>")
	}

	s, err := full(ctx, log, gw)
	if err != nil {
		return err
	}
	defer s.Wait()

	switch args[0] {
	case "add":
		return s.AddTag(args[1], args[2]).Wait(ctx)
	case "rm":
		return s.RemoveTag(args[1], args[2]).Wait(ctx)
	default:
		return fmt.Errorf("tag: unknown action %q", args[0])
	}
}

func remove(ctx context.Context, log *slog.Logger, gw vault.Gateway, ids []string) error {
	s, err := full(ctx, log, gw)
	if err != nil {
		return err
	}
	defer s.Wait()

	for _, id := range ids {
		if !s.Select(id) {
			return fmt.Errorf("delete: item %s not found", id)
		}
	}

	return s.DeleteSelected().Wait(ctx)
}

func upload(ctx context.Context, log *slog.Logger, gw vault.Gateway, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	tagList := fs.String("tags", "", "comma separated tags")
	suggest := fs.Bool("suggest", false, "ask the server for tags when none are given")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("upload: expected at least one file")
	}

	s := vault.NewSession(ctx, log, gw, vault.WithAutoTagging(*suggest))
	defer s.Wait()

	files := make([]vault.DroppedFile, 0, fs.NArg())
	for _, path := range fs.Args() {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		files = append(files, vault.DroppedFile{
			Filename: filepath.Base(path),
			Content:  f,
			Tags:     splitList(*tagList),
		})
	}

	uploaded, err := s.OnFilesDropped(ctx, files)
	for _, item := range uploaded {
		fmt.Printf("%s  %s  %s\n", color.GreenString(item.ID), item.Title, item.URL)
	}

	return err
}

// full сессия с полной коллекцией: команды по id не зависят от окна.
func full(ctx context.Context, log *slog.Logger, gw vault.Gateway) (*vault.Session, error) {
	s, err := start(ctx, log, gw)
	if err != nil {
		return nil, err
	}
	if err := s.LoadAll(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setupLogger() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelWarn,
		},
	}

	return slog.New(opts.NewPrettyHandler(os.Stderr))
}
