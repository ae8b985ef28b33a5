package logging

import (
	"fmt"
	"os"
	"sync"
	"time"
)

type Level int

const (
	FATAL Level = iota
	ERROR
	WARNING
	INFO
	DEBUG
)

func (l Level) String() string {
	switch l {
	case FATAL:
		return "fatal"
	case ERROR:
		return "error"
	case WARNING:
		return "warning"
	case DEBUG:
		return "debug"
	}
	return "info"
}

type Record struct {
	Level     Level
	Component string
	Message   string
}

func Debugf(msg string, args ...interface{}) {
	defaultLogBroker.Records <- Record{DEBUG, "", fmt.Sprintf(msg, args...)}
}

func Infof(msg string, args ...interface{}) {
	defaultLogBroker.Records <- Record{INFO, "", fmt.Sprintf(msg, args...)}
}

func Warnf(msg string, args ...interface{}) {
	defaultLogBroker.Records <- Record{WARNING, "", fmt.Sprintf(msg, args...)}
}

func Errorf(msg string, args ...interface{}) {
	defaultLogBroker.Records <- Record{ERROR, "", fmt.Sprintf(msg, args...)}
}

// SetMinLevel filters out records below lvl. The default is INFO.
func SetMinLevel(lvl Level) {
	defaultLogBroker.SetMinLevel(lvl)
}

// Logger writes records for a single component through the shared broker.
type Logger struct {
	Component string
}

func NewLogger(component string) *Logger {
	return &Logger{component}
}

func (l *Logger) Print(args ...interface{}) {
	defaultLogBroker.Records <- Record{INFO, l.Component, fmt.Sprint(args...)}
}

func (l *Logger) Printf(msg string, args ...interface{}) {
	defaultLogBroker.Records <- Record{INFO, l.Component, fmt.Sprintf(msg, args...)}
}

func (l *Logger) Debugf(msg string, args ...interface{}) {
	defaultLogBroker.Records <- Record{DEBUG, l.Component, fmt.Sprintf(msg, args...)}
}

func (l *Logger) Warnf(msg string, args ...interface{}) {
	defaultLogBroker.Records <- Record{WARNING, l.Component, fmt.Sprintf(msg, args...)}
}

func (l *Logger) Errorf(msg string, args ...interface{}) {
	defaultLogBroker.Records <- Record{ERROR, l.Component, fmt.Sprintf(msg, args...)}
}

func (l *Logger) Fatal(args ...interface{}) {
	defaultLogBroker.Records <- Record{FATAL, l.Component, fmt.Sprint(args...)}
	Shutdown()
	os.Exit(1)
}

func (l *Logger) Fatalf(msg string, args ...interface{}) {
	defaultLogBroker.Records <- Record{FATAL, l.Component, fmt.Sprintf(msg, args...)}
	Shutdown()
	os.Exit(1)
}

// StartStep logs the begin of a named step and returns its name for the
// matching StopStep call, which logs the elapsed time.
func (l *Logger) StartStep(msg string) string {
	defaultLogBroker.StepStart <- Step{l.Component, msg}
	return msg
}

func (l *Logger) StopStep(msg string) {
	defaultLogBroker.StepStop <- Step{l.Component, msg}
}

type Step struct {
	Component string
	Name      string
}

// LogBroker serializes records from all loggers onto stderr. A single
// goroutine owns the output so records from concurrent clients do not
// interleave mid-line.
type LogBroker struct {
	Records   chan Record
	StepStart chan Step
	StepStop  chan Step
	minLevel  Level
	quit      chan bool
	wg        *sync.WaitGroup
}

func (l *LogBroker) SetMinLevel(lvl Level) {
	l.minLevel = lvl
}

func (l *LogBroker) loop() {
	l.wg.Add(1)
	steps := make(map[Step]time.Time)
For:
	for {
		select {
		case record := <-l.Records:
			l.printRecord(record)
		case step := <-l.StepStart:
			steps[step] = time.Now()
			l.printRecord(Record{INFO, step.Component, step.Name})
		case step := <-l.StepStop:
			startTime := steps[step]
			delete(steps, step)
			duration := time.Since(startTime)
			l.printRecord(Record{INFO, step.Component, step.Name + " took: " + duration.String()})
		case <-l.quit:
			break For
		}
	}
Flush:
	// after quit, print all records from chan
	for {
		select {
		case record := <-l.Records:
			l.printRecord(record)
		default:
			break Flush
		}
	}
	l.wg.Done()
}

func (l *LogBroker) printRecord(record Record) {
	if record.Level > l.minLevel {
		return
	}
	fmt.Fprint(os.Stderr, "[", time.Now().Format(time.Stamp), "] ")
	if record.Level != INFO {
		fmt.Fprint(os.Stderr, "[", record.Level.String(), "] ")
	}
	if record.Component != "" {
		fmt.Fprint(os.Stderr, "[", record.Component, "] ")
	}
	fmt.Fprintln(os.Stderr, record.Message)
}

func Shutdown() {
	defaultLogBroker.quit <- true
	defaultLogBroker.wg.Wait()
}

var defaultLogBroker LogBroker

func init() {
	defaultLogBroker = LogBroker{
		Records:   make(chan Record, 8),
		StepStart: make(chan Step),
		StepStop:  make(chan Step),
		minLevel:  INFO,
		quit:      make(chan bool),
		wg:        &sync.WaitGroup{},
	}
	go defaultLogBroker.loop()
}
