package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/planner"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	"github.com/noah-isme/sma-timetable-api/pkg/scheduleclient"
	"github.com/noah-isme/sma-timetable-api/pkg/storage"
)

const usage = `usage: timetablectl [global flags] <command> [flags]

commands:
  list    -group ID [-day N]
  add     -group ID -day N -start HH:MM -end HH:MM -subject ID [-teacher ID] [-room ID] [-mode M]
  edit    -group ID -id ID [-day N] [-start HH:MM] [-end HH:MM] [-subject ID] [-teacher ID] [-room ID] [-mode M]
  delete  -group ID -id ID
  export  -group ID [-format pdf|csv] [-lang en|id|es] [-out DIR]
  token   -user ID [-role ROLE] [-ttl 1h]
`

type app struct {
	store   planner.Store
	exports exporter
	tokens  *service.TokenService
	logger  *zap.Logger
	out     io.Writer
}

type exporter interface {
	Export(ctx context.Context, groupID, format, locale string) (string, []byte, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	global := flag.NewFlagSet("timetablectl", flag.ExitOnError)
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	defaultBase := os.Getenv("TIMETABLE_API_URL")
	if defaultBase == "" {
		defaultBase = fmt.Sprintf("http://localhost:%d%s", cfg.Port, cfg.APIPrefix)
	}
	baseURL := global.String("base", defaultBase, "timetable API base URL")
	token := global.String("token", os.Getenv("TIMETABLE_API_TOKEN"), "bearer token")
	timeout := global.Duration("timeout", 5*time.Second, "HTTP client timeout")
	_ = global.Parse(os.Args[1:])

	httpClient := scheduleclient.DefaultHTTPClient()
	httpClient.Timeout = *timeout
	client := scheduleclient.New(*baseURL, scheduleclient.WithToken(*token), scheduleclient.WithHTTPClient(httpClient))

	a := &app{
		store:   client,
		exports: client,
		tokens:  service.NewTokenService(service.TokenConfig{Secret: cfg.Auth.Secret, Issuer: cfg.Auth.Issuer}),
		logger:  logr,
		out:     os.Stdout,
	}
	if err := a.run(context.Background(), global.Args()); err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New(strings.TrimSpace(usage))
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "list":
		return a.list(ctx, rest)
	case "add":
		return a.add(ctx, rest)
	case "edit":
		return a.edit(ctx, rest)
	case "delete":
		return a.remove(ctx, rest)
	case "export":
		return a.export(ctx, rest)
	case "token":
		return a.issueToken(rest)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	group := fs.String("group", "", "group id")
	dayRaw := fs.String("day", "", "weekday index or name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *group == "" {
		return errors.New("-group is required")
	}

	var day *models.Weekday
	if *dayRaw != "" {
		parsed, err := models.ParseWeekday(*dayRaw)
		if err != nil {
			return err
		}
		day = &parsed
	}
	entries, err := a.store.List(ctx, *group, day)
	if err != nil {
		return err
	}
	a.printEntries(entries)
	return nil
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	group := fs.String("group", "", "group id")
	form := bindEntryFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *group == "" {
		return errors.New("-group is required")
	}
	if strings.TrimSpace(*form.day) == "" {
		return errors.New("-day is required")
	}

	value, err := form.apply(models.ScheduleEntry{GroupID: *group}, fs)
	if err != nil {
		return err
	}
	entry := planner.NewDraft(value)
	return a.save(ctx, entry)
}

func (a *app) edit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	group := fs.String("group", "", "group id")
	id := fs.String("id", "", "schedule id")
	form := bindEntryFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *group == "" || *id == "" {
		return errors.New("-group and -id are required")
	}

	current, err := a.find(ctx, *group, *id)
	if err != nil {
		return err
	}
	entry := planner.Loaded(*current)
	value, err := form.apply(*current, fs)
	if err != nil {
		return err
	}
	if err := entry.Edit(value); err != nil {
		return err
	}
	return a.save(ctx, entry)
}

func (a *app) remove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	group := fs.String("group", "", "group id")
	id := fs.String("id", "", "schedule id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *group == "" || *id == "" {
		return errors.New("-group and -id are required")
	}

	current, err := a.find(ctx, *group, *id)
	if err != nil {
		return err
	}
	entry := planner.Loaded(*current)
	if err := planner.New(a.store, a.logger).Delete(ctx, entry); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %s\n", *id)
	return nil
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	group := fs.String("group", "", "group id")
	format := fs.String("format", "pdf", "pdf or csv")
	lang := fs.String("lang", "", "locale for weekday labels")
	dir := fs.String("out", "./exports", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *group == "" {
		return errors.New("-group is required")
	}

	name, data, err := a.exports.Export(ctx, *group, *format, *lang)
	if err != nil {
		return err
	}
	files, err := storage.NewLocalStorage(*dir)
	if err != nil {
		return err
	}
	path, err := files.Save(name, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %s (%d bytes)\n", path, len(data))
	return nil
}

func (a *app) issueToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	user := fs.String("user", "", "user id")
	role := fs.String("role", string(models.RoleScheduler), "role claim")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errors.New("-user is required")
	}

	signed, err := a.tokens.IssueToken(*user, models.UserRole(strings.ToUpper(*role)), *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, signed)
	return nil
}

// save validates against the current schedule and persists the entry.
func (a *app) save(ctx context.Context, entry *planner.Entry) error {
	p := planner.New(a.store, a.logger)
	if err := p.Validate(ctx, entry); err != nil {
		return err
	}
	if err := p.Persist(ctx, entry); err != nil {
		return err
	}
	a.printEntries([]models.ScheduleEntry{entry.Value()})
	return nil
}

func (a *app) find(ctx context.Context, groupID, id string) (*models.ScheduleEntry, error) {
	entries, err := a.store.List(ctx, groupID, nil)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("schedule %s not found in group %s", id, groupID))
}

func (a *app) printEntries(entries []models.ScheduleEntry) {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDAY\tSTART\tEND\tSUBJECT\tTEACHER\tROOM\tMODE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Weekday, e.StartTime, e.EndTime, e.SubjectID, deref(e.TeacherID), deref(e.RoomID), e.Mode)
	}
	_ = w.Flush()
}

// describe renders errors for the terminal, including the colliding entry of an overlap.
func describe(err error) string {
	var conflictErr *models.ScheduleConflictError
	if errors.As(err, &conflictErr) {
		c := conflictErr.Conflict
		return fmt.Sprintf("%s: overlaps %s on %s %s-%s", appErrors.ErrOverlapConflict.Code, c.ScheduleID, c.Weekday, c.StartTime, c.EndTime)
	}
	var rejected *scheduleclient.PersistenceError
	if errors.As(err, &rejected) {
		if c, ok := rejected.Conflict(); ok {
			return fmt.Sprintf("%s (%d %s): overlaps %s on %s %s-%s", appErrors.ErrPersistence.Code, rejected.Status, rejected.Code, c.ScheduleID, c.Weekday, c.StartTime, c.EndTime)
		}
		return fmt.Sprintf("%s (%d %s): %s", appErrors.ErrPersistence.Code, rejected.Status, rejected.Code, rejected.Message)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return fmt.Sprintf("%s: %s", appErr.Code, appErr.Error())
	}
	return err.Error()
}

func deref(value *string) string {
	if value == nil {
		return "-"
	}
	return *value
}
