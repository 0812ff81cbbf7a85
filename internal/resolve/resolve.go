package resolve

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/envato-archive/outatime/s3types"
)

const tracerName = "github.com/envato-archive/outatime/internal/resolve"

// Carry holds the records of the boundary key of the previous page.
// They are merged with the next page's records for that key before resolution.
type Carry struct {
	Versions      []s3types.ObjectVersion
	DeleteMarkers []s3types.DeleteMarker
}

// Empty reports whether the carry holds no records.
func (c Carry) Empty() bool {
	return len(c.Versions) == 0 && len(c.DeleteMarkers) == 0
}

// ResolveKey picks the revision of one key as of at.
//
// versions and markers must all belong to the same key, newest first.
// Records modified after at are ignored. The first remaining version is the
// candidate; it is hidden when the first remaining delete marker is strictly
// newer than it. A marker with the same timestamp as the candidate does not hide it.
func ResolveKey(
	versions []s3types.ObjectVersion,
	markers []s3types.DeleteMarker,
	at time.Time,
) (s3types.ObjectVersion, bool) {
	idx := slices.IndexFunc(versions, func(v s3types.ObjectVersion) bool {
		return !v.LastModified.After(at)
	})
	if idx < 0 {
		return s3types.ObjectVersion{}, false
	}
	candidate := versions[idx]

	for _, m := range markers {
		if m.LastModified.After(at) {
			continue
		}
		if m.LastModified.After(candidate.LastModified) {
			return s3types.ObjectVersion{}, false
		}
		break
	}

	return candidate, true
}

// ResolvePage resolves every key of page except its boundary key.
//
// acc is the carry returned for the previous page (zero for the first page).
// The returned revisions are ordered by key; the returned Carry holds the
// records of page.NextKeyMarker and must be passed to the next call, or to
// Finish after the last page.
func ResolvePage(acc Carry, page *s3types.Page, at time.Time) ([]s3types.ObjectVersion, Carry) {
	versions := make(map[string][]s3types.ObjectVersion)
	markers := make(map[string][]s3types.DeleteMarker)
	var keys []string

	addKey := func(key string) {
		if _, ok := versions[key]; ok {
			return
		}
		if _, ok := markers[key]; ok {
			return
		}
		keys = append(keys, key)
	}

	for _, list := range [][]s3types.ObjectVersion{acc.Versions, page.Versions} {
		for _, v := range list {
			addKey(v.Key)
			versions[v.Key] = append(versions[v.Key], v)
		}
	}
	for _, list := range [][]s3types.DeleteMarker{acc.DeleteMarkers, page.DeleteMarkers} {
		for _, m := range list {
			addKey(m.Key)
			markers[m.Key] = append(markers[m.Key], m)
		}
	}
	slices.Sort(keys)

	var next Carry
	resolved := make([]s3types.ObjectVersion, 0, len(keys))
	for _, key := range keys {
		if page.NextKeyMarker != "" && key == page.NextKeyMarker {
			next = Carry{Versions: versions[key], DeleteMarkers: markers[key]}
			continue
		}
		if v, ok := ResolveKey(versions[key], markers[key], at); ok {
			resolved = append(resolved, v)
		}
	}

	return resolved, next
}

// Finish resolves the records left in the carry after the final page.
func Finish(acc Carry, at time.Time) []s3types.ObjectVersion {
	if acc.Empty() {
		return nil
	}
	resolved, _ := ResolvePage(Carry{}, &s3types.Page{
		Versions:      acc.Versions,
		DeleteMarkers: acc.DeleteMarkers,
	}, at)
	return resolved
}

// Resolver drives ResolvePage over a backend listing.
type Resolver struct {
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a Resolver. A nil logger discards log output.
func New(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// Resolve walks every page of it and calls emit once per resolved revision,
// as soon as the page that finalizes the revision has been read.
//
// Listing errors and errors returned by emit stop the walk and are returned
// unchanged. Nothing is retried.
func (r *Resolver) Resolve(
	ctx context.Context,
	it s3types.PageIterator,
	at time.Time,
	emit func(s3types.ObjectVersion) error,
) (stats s3types.ResolveStats, err error) {
	ctx, span := r.tracer.Start(ctx, "outatime.resolve",
		trace.WithAttributes(attribute.String("outatime.at", at.UTC().Format(time.RFC3339Nano))))
	defer func() {
		span.SetAttributes(
			attribute.Int("outatime.pages", stats.Pages),
			attribute.Int("outatime.versions", stats.Versions),
			attribute.Int("outatime.delete_markers", stats.DeleteMarkers),
			attribute.Int("outatime.resolved", stats.Resolved),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if closer, ok := it.(io.Closer); ok {
		defer closer.Close()
	}

	var carry Carry
	for it.HasMorePages() {
		page, err := it.NextPage(ctx)
		if err != nil {
			return stats, err
		}

		stats.Pages++
		stats.Versions += len(page.Versions)
		stats.DeleteMarkers += len(page.DeleteMarkers)

		var resolved []s3types.ObjectVersion
		resolved, carry = ResolvePage(carry, page, at)

		r.logger.DebugContext(ctx, "resolved version page",
			slog.Int("page", stats.Pages),
			slog.Int("versions", len(page.Versions)),
			slog.Int("delete_markers", len(page.DeleteMarkers)),
			slog.Int("resolved", len(resolved)),
			slog.String("boundary_key", page.NextKeyMarker),
		)

		if err := r.emitAll(resolved, &stats, emit); err != nil {
			return stats, err
		}
	}

	if err := r.emitAll(Finish(carry, at), &stats, emit); err != nil {
		return stats, err
	}

	return stats, nil
}

func (r *Resolver) emitAll(
	resolved []s3types.ObjectVersion,
	stats *s3types.ResolveStats,
	emit func(s3types.ObjectVersion) error,
) error {
	for _, v := range resolved {
		if err := emit(v); err != nil {
			return err
		}
		stats.Resolved++
	}
	return nil
}
