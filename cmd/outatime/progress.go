package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/envato-archive/outatime/s3types"
)

// progress prints a running byte count as revisions land on disk.
// Fetch serializes observer calls, so no locking is needed here.
type progress struct {
	out   io.Writer
	total int64
	done  int64
	count int
}

func newProgress(out io.Writer, total int64) *progress {
	return &progress{out: out, total: total}
}

// Observe is the s3types.Observer for Fetch.
func (p *progress) Observe(rev s3types.ObjectVersion) {
	p.done += rev.Size
	p.count++
	fmt.Fprintf(p.out, "[%s] %s / %s  %s\n",
		p.percent(), humanize.Bytes(uint64(p.done)), humanize.Bytes(uint64(p.total)), rev.Key)
}

func (p *progress) percent() string {
	if p.total <= 0 {
		return "100%"
	}
	return fmt.Sprintf("%3d%%", p.done*100/p.total)
}

// summary prints the final line of a fetch.
func (p *progress) summary(result *s3types.FetchResult) {
	fmt.Fprintf(p.out, "restored %s %s (%s) in %s\n",
		humanize.Comma(int64(result.Files)),
		pluralize(result.Files, "file"),
		humanize.Bytes(uint64(result.Bytes)),
		result.Duration.Round(time.Millisecond))
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}
