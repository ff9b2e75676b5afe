package runlog

import (
	"go.uber.org/zap"
)

// Tracker remembers error signatures already reported.
type Tracker struct {
	seen map[string]int
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]int)}
}

// Observe records one occurrence of sig and reports whether it is the first.
func (t *Tracker) Observe(sig string) bool {
	t.seen[sig]++
	return t.seen[sig] == 1
}

// Count returns how many times sig was observed.
func (t *Tracker) Count(sig string) int { return t.seen[sig] }

// Distinct returns the number of distinct signatures observed.
func (t *Tracker) Distinct() int { return len(t.seen) }

// ErrorLog isolates data errors: every occurrence goes to the structured
// error log, each distinct message goes to the run log once.
type ErrorLog struct {
	runLog  *zap.Logger
	errLog  *zap.Logger
	tracker *Tracker
	total   int
}

// NewErrorLog creates an ErrorLog writing to the given loggers.
func NewErrorLog(runLog, errLog *zap.Logger) *ErrorLog {
	return &ErrorLog{runLog: runLog, errLog: errLog, tracker: NewTracker()}
}

// Nop returns an ErrorLog that discards everything but still counts.
func Nop() *ErrorLog {
	return NewErrorLog(zap.NewNop(), zap.NewNop())
}

// Record logs one data error. line is the input line number or row key.
func (e *ErrorLog) Record(line int, input string, err error) {
	e.total++
	msg := err.Error()
	e.errLog.Error(msg, zap.Int("line", line), zap.String("input", input))
	if e.tracker.Observe(msg) {
		e.runLog.Warn("data error", zap.Error(err), zap.Int("line", line))
	}
}

// RecordKey logs one data error identified by a row key instead of a line.
func (e *ErrorLog) RecordKey(key string, err error) {
	e.total++
	msg := err.Error()
	e.errLog.Error(msg, zap.String("key", key))
	if e.tracker.Observe(msg) {
		e.runLog.Warn("row error", zap.Error(err), zap.String("key", key))
	}
}

// Total returns the number of errors recorded.
func (e *ErrorLog) Total() int { return e.total }

// Distinct returns the number of distinct error messages recorded.
func (e *ErrorLog) Distinct() int { return e.tracker.Distinct() }
