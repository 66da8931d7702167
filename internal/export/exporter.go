package export

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fhwedel/firma/internal/firma"
)

// Source is the relational side of an export. *firma.Store implements it.
type Source interface {
	Schema() string
	Departments(ctx context.Context) ([]firma.Department, error)
	Salaries(ctx context.Context) ([]firma.Salary, error)
	Personnel(ctx context.Context) ([]firma.PersonnelRecord, error)
	Children(ctx context.Context, pnr int64) ([]firma.Child, error)
	Bonuses(ctx context.Context, pnr int64) ([]int64, error)
	Machines(ctx context.Context, pnr int64) ([]firma.Machine, error)
}

// Options tunes an export.
type Options struct {
	Policy  ErrorPolicy
	Workers int // Concurrent per-employee loads (<= 0 means 4)
}

// Exporter copies a Source into a DocumentSink.
type Exporter struct {
	src    Source
	sink   DocumentSink
	opts   Options
	logger *zap.Logger
}

// New returns an Exporter.
func New(src Source, sink DocumentSink, opts Options, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Policy == "" {
		opts.Policy = DefaultErrorPolicy
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Exporter{src: src, sink: sink, opts: opts, logger: logger}
}

// Export reads everything from the source, then replaces the target
// collections and creates their unique indexes. Nothing is written to the
// sink until every read succeeded, so a source error leaves the previous
// export in place. Returns firma.ErrNotMigrated for a schema that still
// carries the legacy insurer column.
func (e *Exporter) Export(ctx context.Context) (*Manifest, error) {
	manifest := NewManifest(e.src.Schema(), e.opts.Policy)

	depts, err := e.src.Departments(ctx)
	if err != nil {
		return nil, err
	}
	salaries, err := e.src.Salaries(ctx)
	if err != nil {
		return nil, err
	}
	records, err := e.src.Personnel(ctx)
	if err != nil {
		return nil, err
	}

	people, err := e.loadPeople(ctx, records, manifest)
	if err != nil {
		return nil, err
	}

	batches := []struct {
		collection string
		docs       []any
	}{
		{CollectionDepartments, toAny(depts, func(d firma.Department) any { return DepartmentDoc{AbtNr: d.AbtNr, Name: d.Name} })},
		{CollectionSalaries, toAny(salaries, func(s firma.Salary) any { return SalaryDoc{GehStufe: s.GehStufe, Betrag: s.Betrag} })},
		{CollectionPersonnel, toAny(people, func(p PersonDoc) any { return p })},
	}
	for _, b := range batches {
		if err := e.sink.Clear(ctx, b.collection); err != nil {
			return nil, err
		}
	}
	for _, b := range batches {
		if err := e.sink.InsertMany(ctx, b.collection, b.docs); err != nil {
			return nil, err
		}
		e.logger.Debug("collection exported", zap.String("collection", b.collection), zap.Int("documents", len(b.docs)))
	}
	for _, idx := range uniqueIndexes {
		if err := e.sink.EnsureUniqueIndex(ctx, idx.collection, idx.field); err != nil {
			return nil, err
		}
	}
	for _, b := range batches {
		n, err := e.sink.Count(ctx, b.collection)
		if err != nil {
			return nil, err
		}
		manifest.Counts[b.collection] = n
	}

	for _, p := range people {
		if p.KKID == nil {
			manifest.WithoutInsurer = append(manifest.WithoutInsurer, p.Pnr)
		}
	}
	manifest.Complete = len(manifest.Skipped) == 0
	e.logger.Info("export finished",
		zap.Int64("personal", manifest.Counts[CollectionPersonnel]),
		zap.Int64("abteilungen", manifest.Counts[CollectionDepartments]),
		zap.Int64("gehalt", manifest.Counts[CollectionSalaries]),
		zap.Int("without_insurer", len(manifest.WithoutInsurer)),
		zap.Int("skipped", len(manifest.Skipped)))
	return manifest, nil
}

// loadPeople embeds children, bonuses and machines into every employee
// with at most Workers loads in flight. Output order follows records.
func (e *Exporter) loadPeople(ctx context.Context, records []firma.PersonnelRecord, manifest *Manifest) ([]PersonDoc, error) {
	people := make([]PersonDoc, len(records))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, r := range records {
		i, r := i, r
		people[i] = newPersonDoc(r)
		g.Go(func() error {
			err := e.embed(gctx, &people[i])
			if err == nil {
				return nil
			}
			if e.opts.Policy != PolicyBestEffort {
				return fmt.Errorf("failed to load records of pnr %d: %w", r.Pnr, err)
			}
			e.logger.Warn("exporting employee without embedded records", zap.Int64("pnr", r.Pnr), zap.Error(err))
			people[i] = newPersonDoc(r)
			mu.Lock()
			manifest.Skipped = append(manifest.Skipped, SkippedRecord{Pnr: r.Pnr, Error: err.Error()})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return people, nil
}

func (e *Exporter) embed(ctx context.Context, p *PersonDoc) error {
	kids, err := e.src.Children(ctx, p.Pnr)
	if err != nil {
		return err
	}
	for _, k := range kids {
		p.Kinder = append(p.Kinder, ChildDoc{Name: k.Name, Vorname: k.Vorname, Geb: k.Geb})
	}

	bonuses, err := e.src.Bonuses(ctx, p.Pnr)
	if err != nil {
		return err
	}
	p.Praemien = append(p.Praemien, bonuses...)

	machines, err := e.src.Machines(ctx, p.Pnr)
	if err != nil {
		return err
	}
	for _, m := range machines {
		p.Maschinen = append(p.Maschinen, MachineDoc{
			Mnr:        m.Mnr,
			Name:       m.Name,
			AnschDatum: m.AnschDatum,
			Neuwert:    m.Neuwert,
			Zeitwert:   m.Zeitwert,
		})
	}
	return nil
}

func toAny[T any](in []T, fn func(T) any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}
