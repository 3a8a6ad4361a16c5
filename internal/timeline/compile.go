package timeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"autokey/internal/script"
)

// Policy decides what happens to the rest of a script after a bad line.
type Policy int

const (
	// PolicySkip records the error and continues with the next line.
	PolicySkip Policy = iota
	// PolicyAbort stops compilation at the first bad line.
	PolicyAbort
)

// ParsePolicy accepts "skip" or "abort".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return PolicySkip, nil
	case "abort":
		return PolicyAbort, nil
	}
	return PolicySkip, fmt.Errorf("unknown policy %q (want skip or abort)", s)
}

func (p Policy) String() string {
	if p == PolicyAbort {
		return "abort"
	}
	return "skip"
}

// Options configures compilation.
type Options struct {
	OnMalformed Policy
	StrictOrder bool
}

// Result is a compiled script.
type Result struct {
	Timeline *Timeline
	Stats    Stats
	// Errors holds *script.MalformedLineError and *OrderError values for
	// lines skipped under PolicySkip.
	Errors []error
}

const maxLineSize = 1 << 20

// Compile reads a script and builds its timeline. Under PolicyAbort the first
// bad line is returned as the error.
func Compile(r io.Reader, opts Options) (*Result, error) {
	b := NewBuilder(NewTracker(), opts.StrictOrder)
	res := &Result{}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		ev, err := script.ParseLine(lineNo, sc.Text())
		if err == nil && ev != nil {
			_, err = b.Add(ev)
			var oe *OrderError
			if errors.As(err, &oe) {
				oe.Line = lineNo
			}
		}
		if err == nil {
			continue
		}

		if errors.Is(err, script.ErrMalformedLine) {
			b.stats.Malformed++
		}
		if opts.OnMalformed == PolicyAbort {
			return nil, err
		}
		log.Warn().Str("component", "timeline").Err(err).Msg("Timeline: skipping line")
		res.Errors = append(res.Errors, err)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	res.Timeline = b.Timeline()
	res.Stats = b.Stats()
	res.Stats.LinesRead = lineNo

	log.Info().
		Str("component", "timeline").
		Int("lines", res.Stats.LinesRead).
		Int("accepted", res.Stats.Accepted).
		Int("dropped", res.Stats.Dropped).
		Int("malformed", res.Stats.Malformed).
		Msg("Timeline: compiled")
	return res, nil
}

// CompileString is Compile over an in-memory script.
func CompileString(src string, opts Options) (*Result, error) {
	return Compile(strings.NewReader(src), opts)
}

// BuildEvents runs already parsed events through a fresh builder.
func BuildEvents(events []script.Event, opts Options) (*Result, error) {
	b := NewBuilder(NewTracker(), opts.StrictOrder)
	res := &Result{}
	for _, ev := range events {
		if _, err := b.Add(ev); err != nil {
			if opts.OnMalformed == PolicyAbort {
				return nil, err
			}
			res.Errors = append(res.Errors, err)
		}
	}
	res.Timeline = b.Timeline()
	res.Stats = b.Stats()
	return res, nil
}

// CompileSource compiles either a text script or, when recording is set, a
// JSON recording.
func CompileSource(r io.Reader, recording bool, opts Options) (*Result, error) {
	if !recording {
		return Compile(r, opts)
	}
	events, err := LoadRecording(r)
	if err != nil {
		return nil, err
	}
	return BuildEvents(events, opts)
}

// CompileFile opens path and compiles it with CompileSource.
func CompileFile(path string, recording bool, opts Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return CompileSource(f, recording, opts)
}
