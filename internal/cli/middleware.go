package cli

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// lineHandler processes one line of session input.
type lineHandler func(line string) error

type lineMiddleware func(lineHandler) lineHandler

// chain wraps h so that the first middleware is outermost.
func chain(h lineHandler, mws ...lineMiddleware) lineHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

var errInternal = errors.New("internal error")

// recovery turns a panic in a handler or a subscriber into an error so one
// bad line does not end the session.
func recovery(logger zerolog.Logger) lineMiddleware {
	return func(next lineHandler) lineHandler {
		return func(line string) (err error) {
			defer func() {
				if r := recover(); r != nil {
					var stack [4096]byte
					n := runtime.Stack(stack[:], false)

					logger.Error().
						Str("command", commandName(line)).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", string(stack[:n])).
						Msg("panic recovered")

					err = errInternal
				}
			}()
			return next(line)
		}
	}
}

// lineLogger logs each handled line. Only the command or field names are
// logged, never the values.
func lineLogger(logger zerolog.Logger) lineMiddleware {
	return func(next lineHandler) lineHandler {
		return func(line string) error {
			start := time.Now()

			err := next(line)

			evt := logger.Debug()
			if err != nil && !errors.Is(err, errQuit) {
				evt = logger.Warn().Err(err)
			}

			evt.
				Str("command", commandName(line)).
				Dur("latency", time.Since(start)).
				Msg("line")

			return err
		}
	}
}

// commandName reduces a line to what it does: the keyword, "json", or the
// assigned field names.
func commandName(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "{") {
		return "json"
	}
	terms := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	names := make([]string, 0, len(terms))
	for _, t := range terms {
		name, _, _ := strings.Cut(t, "=")
		names = append(names, name)
	}
	return strings.Join(names, ",")
}
