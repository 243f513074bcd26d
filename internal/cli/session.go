package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ehr/vitalscores/internal/domain/calculation"
	"github.com/ehr/vitalscores/internal/domain/validation"
	"github.com/ehr/vitalscores/internal/domain/vitals"
	"github.com/ehr/vitalscores/internal/platform/metrics"
)

var errQuit = errors.New("quit")

const sessionHelp = `commands:
  field=value ...   set one or more fields, e.g. rr=18 spo2=95 o2=no avpu=A
  field=            clear a field
  {"heartRate":90}  apply a JSON partial update (null clears)
  show              print the current vital signs
  detail            print breakdowns, completeness and validation
  completeness      print data completeness
  requirements      print field requirements
  reset             clear every field
  quit | exit       leave the session
aliases: rr resp spo2 sats o2 temp sbp bp hr pulse avpu acvpu
`

// Session reads commands line by line and feeds them to a calculation
// Service. It subscribes for its lifetime and prints every recomputed
// result.
type Session struct {
	svc     *calculation.Service
	render  *Renderer
	in      io.Reader
	out     io.Writer
	prompt  bool
	logger  zerolog.Logger
	metrics *metrics.Collectors
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithPrompt prints "> " before each line. Use it when input is a terminal.
func WithPrompt(on bool) SessionOption {
	return func(s *Session) { s.prompt = on }
}

// WithSessionLogger sets the logger. The default discards everything.
func WithSessionLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger.With().Str("component", "session").Logger()
	}
}

// WithSessionMetrics records validation outcomes.
func WithSessionMetrics(m *metrics.Collectors) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// NewSession returns a Session reading from in. Results and messages go to
// out through render.
func NewSession(svc *calculation.Service, render *Renderer, in io.Reader, out io.Writer, opts ...SessionOption) *Session {
	s := &Session{
		svc:    svc,
		render: render,
		in:     in,
		out:    out,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes input until EOF, quit, or ctx is cancelled. Errors in a
// single line are printed and the session continues.
func (s *Session) Run(ctx context.Context) error {
	unsubscribe := s.svc.Subscribe(func(res calculation.CalculationResults) {
		if err := s.render.Results(res); err != nil {
			s.logger.Error().Err(err).Msg("render results")
		}
	})
	defer unsubscribe()

	handle := chain(s.handleLine, recovery(s.logger), lineLogger(s.logger))

	done := make(chan struct{})
	defer close(done)
	lines, readErr := s.readLines(done)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.prompt {
			fmt.Fprint(s.out, "> ")
		}
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				return nil
			}
			line = l
		}
		err := handle(line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

// readLines scans s.in on its own goroutine so Run can stop on cancellation
// while a read is pending. lines is closed at EOF after the scan error, if
// any, is sent on errc. The goroutine stops sending once done is closed; a
// read already blocked in the underlying reader returns when that reader
// does.
func (s *Session) readLines(done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

func (s *Session) handleLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	if strings.HasPrefix(line, "{") {
		return s.applyJSON(line)
	}

	switch strings.ToLower(line) {
	case "quit", "exit":
		return errQuit
	case "help", "?":
		_, err := io.WriteString(s.out, sessionHelp)
		return err
	case "reset":
		s.svc.Reset()
		return nil
	case "show":
		return s.render.Vitals(s.svc.CurrentVitalSigns())
	case "completeness":
		return s.render.Completeness(s.svc.DataCompleteness())
	case "requirements":
		return s.render.Requirements(s.svc.FieldRequirements(), s.svc.MinimumDataRequirements())
	case "detail", "details":
		return s.render.Report(BuildReport(s.svc))
	}
	return s.applyAssignments(line)
}

// applyAssignments applies every term of the line as one update, or none of
// them if any term fails to parse.
func (s *Session) applyAssignments(line string) error {
	assignments, err := ParseAssignments(line)
	if err != nil {
		return err
	}
	u := vitals.NewUpdate()
	for _, a := range assignments {
		if err := a.ApplyTo(u); err != nil {
			return err
		}
	}
	for _, a := range assignments {
		if err := s.report(string(a.Field), a.Validate()); err != nil {
			return err
		}
	}
	s.svc.UpdateVitalSigns(u)
	return nil
}

func (s *Session) applyJSON(line string) error {
	u := vitals.NewUpdate()
	if err := json.Unmarshal([]byte(line), u); err != nil {
		return err
	}
	next := u.Apply(s.svc.CurrentVitalSigns())
	state := validation.VitalSigns(next)
	for _, f := range u.Touched() {
		if res, ok := state[f]; ok {
			if err := s.report(string(f), res); err != nil {
				return err
			}
		}
	}
	s.svc.UpdateVitalSigns(u)
	return nil
}

// report records a validation outcome and prints it unless it is clean.
func (s *Session) report(field string, res validation.Result) error {
	sev := res.Severity()
	s.metrics.ObserveValidation(field, string(sev))
	if sev == validation.SeverityNone {
		return nil
	}
	return s.render.Validation(field, res)
}

// BuildReport gathers detailed results, completeness and the physiological
// validation summary from svc's current snapshot.
func BuildReport(svc *calculation.Service) Report {
	v := svc.CurrentVitalSigns()
	return Report{
		Vitals:       v,
		Results:      svc.DetailedResults(),
		Completeness: svc.DataCompleteness(),
		Validation:   validation.AllVitalSigns(v).Summary(),
	}
}
