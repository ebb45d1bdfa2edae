package fix

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/symphonyoss/integration-maintenance/internal/creatorid"
	"github.com/symphonyoss/integration-maintenance/internal/instance/repository"
	"github.com/symphonyoss/integration-maintenance/internal/report"
	"github.com/symphonyoss/integration-maintenance/internal/storage"
	"github.com/symphonyoss/integration-maintenance/pkg/logger"
	"github.com/symphonyoss/integration-maintenance/pkg/metrics"
)

var (
	ErrLocked         = errors.New("another run holds the lock")
	ErrInvalidDefault = errors.New("default value is not a numeric creator id")
	ErrNoBackupStore  = errors.New("backup storage not configured")
	ErrBackupMismatch = errors.New("backup belongs to a different collection or field")
)

// Locker gives a run exclusive access to a collection.
type Locker interface {
	Acquire(ctx context.Context, collection, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, collection, owner string) error
}

// ReportCache keeps the last report where other tooling can read it cheaply.
type ReportCache interface {
	SaveReport(ctx context.Context, collection string, v interface{}) error
}

type BackupStore interface {
	SaveBackup(ctx context.Context, b *storage.Backup) (string, error)
	LoadBackup(ctx context.Context, key string) (*storage.Backup, error)
}

type History interface {
	Record(ctx context.Context, r *report.Report) error
}

// Options selects what a Fixer touches.
type Options struct {
	Collection string
	Field      string
	Value      string
	DryRun     bool
	LockTTL    time.Duration
}

// Fixer runs the creatorId normalization and its validation pass.
type Fixer struct {
	repo    repository.Repository
	opts    Options
	locker  Locker
	cache   ReportCache
	backups BackupStore
	history History
	newID   func() string
	now     func() time.Time
}

// Option wires an optional collaborator into a Fixer.
type Option func(*Fixer)

func WithLocker(l Locker) Option           { return func(f *Fixer) { f.locker = l } }
func WithReportCache(c ReportCache) Option { return func(f *Fixer) { f.cache = c } }
func WithBackups(b BackupStore) Option     { return func(f *Fixer) { f.backups = b } }
func WithHistory(h History) Option         { return func(f *Fixer) { f.history = h } }

func New(repo repository.Repository, opts Options, with ...Option) (*Fixer, error) {
	if repo == nil {
		return nil, repository.ErrNotConfigured
	}
	if opts.Field == "" {
		opts.Field = creatorid.Field
	}
	if opts.Value == "" {
		opts.Value = creatorid.DefaultValue
	}
	if !creatorid.Valid(opts.Value) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDefault, opts.Value)
	}
	f := &Fixer{repo: repo, opts: opts, newID: uuid.NewString, now: time.Now}
	for _, w := range with {
		w(f)
	}
	return f, nil
}

func (f *Fixer) newReport(mode report.Mode) *report.Report {
	return &report.Report{
		RunID:      f.newID(),
		Mode:       mode,
		Collection: f.opts.Collection,
		Field:      f.opts.Field,
		StartedAt:  f.now().UTC(),
	}
}

// Run normalizes every non-conforming creator id and then re-runs the match query.
// In dry-run mode only the query runs. The returned report is non-nil whenever the
// run got past the lock, even if err is set.
func (f *Fixer) Run(ctx context.Context) (*report.Report, error) {
	mode := report.ModeFix
	if f.opts.DryRun {
		mode = report.ModeDryRun
	}
	rep := f.newReport(mode)
	unlock, err := f.lock(ctx, rep.RunID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if mode == report.ModeDryRun {
		err = f.dryRun(ctx, rep)
	} else {
		err = f.fix(ctx, rep)
	}
	f.finish(ctx, rep, err)
	return rep, err
}

func (f *Fixer) dryRun(ctx context.Context, rep *report.Report) error {
	n, err := f.repo.CountNonConforming(ctx)
	if err != nil {
		return err
	}
	rep.Matched = n
	rep.Remaining = n
	rep.Response = n == 0
	rep.Message = report.DryRunMessage(n)
	return nil
}

func (f *Fixer) fix(ctx context.Context, rep *report.Report) error {
	if f.backups != nil {
		key, err := f.backup(ctx, rep.RunID)
		if err != nil {
			return err
		}
		rep.BackupKey = key
	}

	res, err := f.repo.NormalizeCreator(ctx, f.opts.Value)
	if err != nil {
		return err
	}
	rep.Matched = res.Matched
	rep.Modified = res.Modified
	logger.Infof("%s: set %s=%q on %d of %d matched documents", f.opts.Collection, f.opts.Field, f.opts.Value, res.Modified, res.Matched)

	return f.validate(ctx, rep)
}

// validate is the read-only validation pass.
func (f *Fixer) validate(ctx context.Context, rep *report.Report) error {
	remaining, err := f.repo.CountNonConforming(ctx)
	if err != nil {
		return err
	}
	rep.Remaining = remaining
	rep.Response = remaining == 0
	if rep.Response {
		rep.Message = report.FixedMessage(f.opts.Field)
	} else {
		rep.Message = report.NotFixedMessage(f.opts.Field, remaining)
	}
	return nil
}

func (f *Fixer) backup(ctx context.Context, runID string) (string, error) {
	snaps, err := f.repo.FindNonConforming(ctx)
	if err != nil {
		return "", err
	}
	if len(snaps) == 0 {
		logger.Debugf("%s: nothing to back up", f.opts.Collection)
		return "", nil
	}
	key, err := f.backups.SaveBackup(ctx, &storage.Backup{
		RunID:      runID,
		Collection: f.opts.Collection,
		Field:      f.opts.Field,
		Value:      f.opts.Value,
		CreatedAt:  f.now().UTC(),
		Snapshots:  snaps,
	})
	if err != nil {
		return "", err
	}
	logger.Infof("%s: backed up %d documents to %s", f.opts.Collection, len(snaps), key)
	return key, nil
}

// Check runs the validation pass alone. It takes no lock and writes nothing to the collection.
func (f *Fixer) Check(ctx context.Context) (*report.Report, error) {
	rep := f.newReport(report.ModeCheck)
	err := f.validate(ctx, rep)
	f.finish(ctx, rep, err)
	return rep, err
}

// Restore puts back the creator ids saved by the run that produced backupKey.
// Documents edited since that run (field no longer holding the default) are left alone.
func (f *Fixer) Restore(ctx context.Context, backupKey string) (*report.Report, error) {
	if f.backups == nil {
		return nil, ErrNoBackupStore
	}
	rep := f.newReport(report.ModeRestore)
	rep.BackupKey = backupKey
	unlock, err := f.lock(ctx, rep.RunID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = f.restore(ctx, rep, backupKey)
	f.finish(ctx, rep, err)
	return rep, err
}

func (f *Fixer) restore(ctx context.Context, rep *report.Report, key string) error {
	b, err := f.backups.LoadBackup(ctx, key)
	if err != nil {
		return err
	}
	if b.Collection != f.opts.Collection || b.Field != f.opts.Field {
		return fmt.Errorf("%w: backup %s.%s, run %s.%s", ErrBackupMismatch, b.Collection, b.Field, f.opts.Collection, f.opts.Field)
	}
	n, err := f.repo.RestoreCreators(ctx, b.Snapshots, b.Value)
	if err != nil {
		return err
	}
	rep.Matched = int64(len(b.Snapshots))
	rep.Modified = n
	remaining, err := f.repo.CountNonConforming(ctx)
	if err != nil {
		return err
	}
	rep.Remaining = remaining
	rep.Response = n == int64(len(b.Snapshots))
	rep.Message = report.RestoredMessage(f.opts.Field, int(n), len(b.Snapshots))
	return nil
}

func (f *Fixer) lock(ctx context.Context, owner string) (func(), error) {
	if f.locker == nil {
		return func() {}, nil
	}
	ok, err := f.locker.Acquire(ctx, f.opts.Collection, owner, f.opts.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w on %s", ErrLocked, f.opts.Collection)
	}
	return func() {
		// release even when ctx has already expired
		if err := f.locker.Release(context.WithoutCancel(ctx), f.opts.Collection, owner); err != nil {
			logger.Warnf("release run lock on %s: %v", f.opts.Collection, err)
		}
	}, nil
}

// finish stamps the report and hands it to metrics, history and the cache.
// Failures there are logged; they never change the outcome of the run.
func (f *Fixer) finish(ctx context.Context, rep *report.Report, runErr error) {
	rep.FinishedAt = f.now().UTC()
	if runErr != nil {
		rep.Error = runErr.Error()
		rep.Response = false
		if rep.Message == "" {
			rep.Message = fmt.Sprintf("%s %s failed: %v", f.opts.Field, rep.Mode, runErr)
		}
	}
	observe(rep)

	ctx = context.WithoutCancel(ctx)
	if f.history != nil {
		if err := f.history.Record(ctx, rep); err != nil {
			logger.Warnf("record run %s: %v", rep.RunID, err)
		}
	}
	if f.cache != nil {
		if err := f.cache.SaveReport(ctx, f.opts.Collection, rep); err != nil {
			logger.Warnf("cache run %s: %v", rep.RunID, err)
		}
	}
	logger.Infow("run finished",
		"runId", rep.RunID,
		"mode", string(rep.Mode),
		"collection", rep.Collection,
		"matched", rep.Matched,
		"modified", rep.Modified,
		"remaining", rep.Remaining,
		"response", rep.Response,
	)
}

func observe(rep *report.Report) {
	col := rep.Collection
	if rep.Mode == report.ModeFix {
		metrics.DocumentsMatched.WithLabelValues(col).Add(float64(rep.Matched))
		metrics.DocumentsModified.WithLabelValues(col).Add(float64(rep.Modified))
	}
	if rep.Error == "" {
		metrics.NonConformingRemaining.WithLabelValues(col).Set(float64(rep.Remaining))
	}
	metrics.Runs.WithLabelValues(col, rep.Outcome()).Inc()
	metrics.RunDuration.WithLabelValues(col).Observe(rep.Duration().Seconds())
}
