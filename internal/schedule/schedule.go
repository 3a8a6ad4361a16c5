// Package schedule replays configured scripts on cron schedules.
package schedule

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"autokey/internal/config"
	"autokey/internal/runner"
	"autokey/internal/timeline"
)

// Starter starts a compiled timeline. *runner.Runner implements it.
type Starter interface {
	Start(tl *timeline.Timeline, source string) (string, error)
}

// Scheduler owns the cron instance and the schedules it fires
type Scheduler struct {
	cron      *cron.Cron
	starter   Starter
	baseDir   string
	opts      timeline.Options
	schedules map[string]config.Schedule
	entries   map[string]cron.EntryID
}

// New validates schedules and registers them. Relative script paths are
// resolved against baseDir.
func New(starter Starter, baseDir string, schedules []config.Schedule, opts timeline.Options) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(),
		starter:   starter,
		baseDir:   baseDir,
		opts:      opts,
		schedules: make(map[string]config.Schedule),
		entries:   make(map[string]cron.EntryID),
	}

	for _, sch := range schedules {
		if sch.Name == "" {
			return nil, errors.New("schedule without a name")
		}
		if _, dup := s.schedules[sch.Name]; dup {
			return nil, fmt.Errorf("duplicate schedule %q", sch.Name)
		}
		spec, err := cron.ParseStandard(sch.Cron)
		if err != nil {
			return nil, fmt.Errorf("schedule %q: invalid cron expression %q: %w", sch.Name, sch.Cron, err)
		}

		name := sch.Name
		s.schedules[name] = sch
		s.entries[name] = s.cron.Schedule(spec, cron.FuncJob(func() { s.fire(name) }))
	}
	return s, nil
}

// Start runs the cron loop in the background
func (s *Scheduler) Start() {
	log.Info().Str("component", "schedule").Int("schedules", len(s.schedules)).Msg("Schedule: starting")
	s.cron.Start()
}

// Stop halts the cron loop and waits for a firing job to return. It does not
// stop a run the job already started.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Str("component", "schedule").Msg("Schedule: stopped")
}

// Names returns the schedule names, sorted
func (s *Scheduler) Names() []string {
	names := make([]string, 0, len(s.schedules))
	for name := range s.schedules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Next returns when name fires next. It is zero before Start.
func (s *Scheduler) Next(name string) time.Time {
	id, ok := s.entries[name]
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Run compiles the named schedule's script and starts it now. It returns
// runner.ErrBusy when another run is active.
func (s *Scheduler) Run(name string) (string, error) {
	sch, ok := s.schedules[name]
	if !ok {
		return "", fmt.Errorf("unknown schedule %q", name)
	}

	path := sch.Script
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.baseDir, path)
	}
	res, err := timeline.CompileFile(path, sch.Recording, s.opts)
	if err != nil {
		return "", fmt.Errorf("schedule %q: %w", name, err)
	}
	return s.starter.Start(res.Timeline, "schedule:"+name)
}

func (s *Scheduler) fire(name string) {
	id, err := s.Run(name)
	switch {
	case errors.Is(err, runner.ErrBusy):
		log.Warn().Str("component", "schedule").Str("schedule", name).Msg("Schedule: skipped, another run is active")
	case err != nil:
		log.Error().Str("component", "schedule").Str("schedule", name).Err(err).Msg("Schedule: failed to start")
	default:
		log.Info().Str("component", "schedule").Str("schedule", name).Str("run_id", id).Msg("Schedule: fired")
	}
}
