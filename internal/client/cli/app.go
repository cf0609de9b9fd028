// Package cli implements the casevault command line uploader.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dmitrijs2005/casevault/internal/client/config"
	"github.com/dmitrijs2005/casevault/internal/client/journal"
	"github.com/dmitrijs2005/casevault/internal/client/uploader"
	"github.com/dmitrijs2005/casevault/internal/filex"
	"github.com/dmitrijs2005/casevault/internal/uploadapi"
)

const usage = `usage: casevault [-c config.json] [-addr host:port] [-retries N] [-journal PATH] <command> [flags]

commands:
  upload -file PATH (-case ID | -document ID) [-title T] [-category C] [-notes N] [-type MIME]
  versions DOCUMENT_ID
  download VERSION_ID
  pending
  finish
`

// Client is the subset of the uploader used by commands.
type Client interface {
	Upload(ctx context.Context, f uploader.File, t uploader.Target) (*uploadapi.FinalizeUploadResponse, error)
	ListVersions(ctx context.Context, documentID string) ([]uploadapi.DocumentVersion, error)
	DownloadURL(ctx context.Context, versionID string) (*uploadapi.GetDownloadURLResponse, error)
	Pending(ctx context.Context) ([]journal.Entry, error)
	FinishPending(ctx context.Context) ([]uploader.Finished, error)
}

type App struct {
	client Client
	in     *bufio.Reader
	out    io.Writer
}

func NewApp(c Client, in io.Reader, out io.Writer) *App {
	return &App{client: c, in: bufio.NewReader(in), out: out}
}

// Main loads configuration, parses global flags, resolves the token,
// connects and runs one command. It returns the process exit code.
func Main(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg := config.LoadConfig(args)

	fs := flag.NewFlagSet("casevault", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	fs.StringVar(&cfg.ServerEndpointAddr, "addr", cfg.ServerEndpointAddr, "gRPC address of the upload service")
	fs.Uint64Var(&cfg.Retries, "retries", cfg.Retries, "retries for transient failures")
	fs.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "local journal of unfinished uploads")
	fs.String("c", "", "JSON config file")
	fs.String("config", "", "JSON config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	token := cfg.Token
	if token == "" {
		var err error
		if token, err = GetToken(stderr); err != nil {
			fmt.Fprintln(stderr, "read token:", err)
			return 1
		}
	}

	db, err := openJournal(ctx, cfg.JournalPath)
	if err != nil {
		fmt.Fprintln(stderr, "journal:", err)
		return 1
	}
	defer db.Close()

	policy := uploader.RetryPolicy{Retries: cfg.Retries, Base: cfg.RetryBase, Max: cfg.RetryMax}
	c, closer, err := uploader.Dial(cfg.ServerEndpointAddr, token,
		uploader.WithRetryPolicy(policy),
		uploader.WithJournal(journal.NewSQLiteRepository(db)),
	)
	if err != nil {
		fmt.Fprintln(stderr, "connect:", err)
		return 1
	}
	defer closer.Close()

	if err := NewApp(c, stdin, stdout).Execute(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		fmt.Fprintln(stderr, "error:", describe(err))
		return 1
	}
	return 0
}

func (a *App) Execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "upload":
		return a.upload(ctx, args)
	case "versions":
		if len(args) != 1 {
			return errors.New("versions needs a document id")
		}
		return a.versions(ctx, args[0])
	case "download":
		if len(args) != 1 {
			return errors.New("download needs a version id")
		}
		return a.download(ctx, args[0])
	case "pending":
		return a.pending(ctx)
	case "finish":
		return a.finish(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *App) upload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	path := fs.String("file", "", "file to upload")
	caseID := fs.String("case", "", "case for a new document")
	documentID := fs.String("document", "", "document to add a version to")
	contentType := fs.String("type", "", "content type (inferred from the extension if empty)")
	var meta uploadapi.DocumentMeta
	fs.StringVar(&meta.Title, "title", "", "document title")
	fs.StringVar(&meta.Category, "category", "", "document category")
	fs.StringVar(&meta.Notes, "notes", "", "document notes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("-file is required")
	}
	if *caseID == "" && *documentID == "" {
		id, err := GetSimpleText(a.in, "Case ID for the new document:", a.out)
		if err != nil {
			return err
		}
		*caseID = id
	}

	f, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}

	ct := *contentType
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(*path))
	}

	res, err := a.client.Upload(ctx, uploader.File{
		Path:        *path,
		Name:        filepath.Base(*path),
		Size:        st.Size(),
		ContentType: ct,
		Body:        f,
	}, uploader.Target{CaseID: *caseID, DocumentID: *documentID, DocumentMeta: meta})
	if err != nil {
		return err
	}

	note := ""
	if res.AlreadyFinalized {
		note = " (already finalized)"
	}
	fmt.Fprintf(a.out, "document %s version %d (%s)%s\n", res.DocumentID, res.Version, res.VersionID, note)
	return nil
}

func (a *App) versions(ctx context.Context, documentID string) error {
	versions, err := a.client.ListVersions(ctx, documentID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tID\tFILE\tSIZE\tCREATED")
	for _, v := range versions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", v.Version, v.ID, v.FileName, v.FileSize, v.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func (a *App) download(ctx context.Context, versionID string) error {
	res, err := a.client.DownloadURL(ctx, versionID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\n%s\n", res.FileName, res.URL)
	return nil
}

func (a *App) pending(ctx context.Context) error {
	entries, err := a.client.Pending(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "no unfinished uploads")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INTENT\tDOCUMENT\tVERSION\tFILE\tSTARTED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", e.Request.IntentID, e.Request.DocumentID, e.Request.ExpectedVersion, e.FilePath, e.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

// finish reports each journaled upload and fails if any is still pending.
func (a *App) finish(ctx context.Context) error {
	results, err := a.client.FinishPending(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(a.out, "%s: %s\n", r.Entry.Request.IntentID, describe(r.Err))
			continue
		}
		fmt.Fprintf(a.out, "%s: document %s version %d (%s)\n", r.Entry.Request.IntentID, r.Response.DocumentID, r.Response.Version, r.Response.VersionID)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads not finalized", failed, len(results))
	}
	return nil
}

func openJournal(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		var err error
		if path, err = filex.FileInDir(".casevault", "journal.db"); err != nil {
			return nil, err
		}
	}
	return journal.Open(ctx, path)
}

// describe prefixes the server's error code when one is present.
func describe(err error) string {
	if code := uploadapi.ErrorCode(err); code != "" {
		return code + ": " + err.Error()
	}
	return err.Error()
}
