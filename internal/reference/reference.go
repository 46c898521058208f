// Package reference allocates human-readable reservation references of the
// form RES-YYYY-NNN.
package reference

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/soundrent-backoffice/internal/pricing"
)

// Prefix starts every reservation reference.
const Prefix = "RES"

// Format renders the reference of sequence seq in year, zero-padded to at
// least three digits.
func Format(year, seq int) string {
	return fmt.Sprintf("%s-%d-%03d", Prefix, year, seq)
}

// YearPrefix is the LIKE-friendly prefix shared by every reference of year.
func YearPrefix(year int) string {
	return fmt.Sprintf("%s-%d-", Prefix, year)
}

// Seq extracts the sequence number of ref when it belongs to year.
func Seq(ref string, year int) (int, bool) {
	rest, ok := strings.CutPrefix(ref, YearPrefix(year))
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// MaxSeq returns the highest sequence number among refs for year, or 0.
func MaxSeq(year int, refs []string) int {
	hi := 0
	for _, r := range refs {
		if n, ok := Seq(r, year); ok && n > hi {
			hi = n
		}
	}
	return hi
}

// Next returns the reference following the highest one of year in existing.
func Next(year int, existing []string) string {
	return Format(year, MaxSeq(year, existing)+1)
}

// Fallback builds a reference from the last six digits of the millisecond
// clock. It is only used when no sequence can be obtained.
func Fallback(now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return fmt.Sprintf("%s-%d-%s", Prefix, now.Year(), ms)
}

// Sequence hands out strictly increasing numbers per year.
type Sequence interface {
	NextSeq(ctx context.Context, year int) (int, error)
}

// Allocator turns a Sequence into references and falls back to a clock
// based reference when the sequence is unavailable.
type Allocator struct {
	seq Sequence
	now func() time.Time
	loc *time.Location // the year of a reference is the business year
	log *zap.Logger
}

// NewAllocator returns an Allocator over seq. A nil logger discards output.
func NewAllocator(seq Sequence, log *zap.Logger) *Allocator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Allocator{seq: seq, now: time.Now, loc: pricing.Paris, log: log}
}

// Allocate returns the next reference for the current year.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	now := a.now().In(a.loc)
	year := now.Year()
	if a.seq != nil {
		n, err := a.seq.NextSeq(ctx, year)
		if err == nil {
			return Format(year, n), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		a.log.Warn("reference sequence unavailable, using clock fallback", zap.Int("year", year), zap.Error(err))
	}
	return Fallback(now), nil
}
