// Package logger provides the application logger: std log output plus optional
// Rollbar reporting for warnings and errors.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/rollbar/rollbar-go"
)

// Logger is implemented by every logger handed to services and handlers.
// Args are key/value pairs; an error value may be passed under any key.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Std writes leveled lines to a std *log.Logger.
type Std struct {
	std *log.Logger
}

var _ Logger = (*Std)(nil)

// New returns a Std logger writing to out with the given prefix.
func New(out io.Writer, prefix string) *Std {
	if out == nil {
		out = os.Stdout
	}
	return &Std{std: log.New(out, prefix, log.LstdFlags|log.Lmicroseconds|log.Lshortfile)}
}

// Discard returns a logger that drops everything.
func Discard() *Std { return New(io.Discard, "") }

func (l *Std) Debug(msg string, args ...any) { l.print("DEBUG", msg, args) }
func (l *Std) Info(msg string, args ...any)  { l.print("INFO", msg, args) }
func (l *Std) Warn(msg string, args ...any)  { l.print("WARN", msg, args) }
func (l *Std) Error(msg string, args ...any) { l.print("ERROR", msg, args) }

// StdLogger exposes the underlying *log.Logger for libraries that want one.
func (l *Std) StdLogger() *log.Logger { return l.std }

func (l *Std) print(lvl, msg string, args []any) {
	_ = l.std.Output(3, format(lvl, msg, args))
}

func format(lvl, msg string, args []any) string {
	var b strings.Builder
	b.WriteString(lvl)
	b.WriteByte(' ')
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		b.WriteByte(' ')
		if i+1 == len(args) {
			fmt.Fprintf(&b, "%v", args[i])
			break
		}
		fmt.Fprintf(&b, "%v=%v", args[i], args[i+1])
	}
	return b.String()
}

// RollbarConfig configures Rollbar reporting.
type RollbarConfig struct {
	Token       string
	Environment string
	CodeVersion string
	ServerHost  string
}

// Rollbar prints like Std and reports warnings and errors to Rollbar.
type Rollbar struct {
	*Std
}

var _ Logger = (*Rollbar)(nil)

// NewRollbar configures the rollbar client. Reporting is disabled when no token is set.
func NewRollbar(std *Std, conf RollbarConfig) *Rollbar {
	rollbar.SetToken(conf.Token)
	rollbar.SetEnvironment(conf.Environment)
	rollbar.SetCodeVersion(conf.CodeVersion)
	rollbar.SetServerHost(conf.ServerHost)
	rollbar.SetEnabled(conf.Token != "")
	return &Rollbar{Std: std}
}

func (l *Rollbar) Warn(msg string, args ...any) {
	rollbar.Warning(prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l *Rollbar) Error(msg string, args ...any) {
	rollbar.Error(prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

// Flush blocks until queued reports are sent.
func (l *Rollbar) Flush() { rollbar.Wait() }

// prepare turns msg and key/value args into rollbar's (error|string, map) form.
func prepare(msg string, args []any) []any {
	extras := make(map[string]interface{}, len(args)/2)
	var cause error
	for i := 0; i+1 < len(args); i += 2 {
		if err, ok := args[i+1].(error); ok && cause == nil {
			cause = err
			continue
		}
		extras[fmt.Sprint(args[i])] = args[i+1]
	}
	out := []any{msg}
	if cause != nil {
		out = []any{fmt.Errorf("%s: %w", msg, cause)}
	}
	if len(extras) > 0 {
		out = append(out, extras)
	}
	return out
}
