package logger

import (
	"log"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Level represents the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	NoticeLevel
	ErrorLevel
)

type Domain int

const (
	None = iota
	Solana
	Ethereum
	Mantis
)

var domainMap = map[string]Domain{
	"solana":   Solana,
	"ethereum": Ethereum,
	"mantis":   Mantis,
}

var domainPrefixes = map[Domain]string{
	None:     "",
	Solana:   "[SOL]  ",
	Ethereum: "[ETH]  ",
	Mantis:   "[MAN]  ",
}

var colors = map[Domain]color.Attribute{
	None:     color.FgWhite,
	Solana:   color.FgHiMagenta,
	Ethereum: color.FgHiGreen,
	Mantis:   color.FgHiBlue,
}

// Logger is a simple interface for logging messages.
type Logger interface {
	// Info logs an informational message.
	Info(format string, args ...interface{})
	InfoWithDomain(domain string, format string, args ...interface{})

	// Error logs an error message.
	Error(format string, args ...interface{})
	ErrorWithDomain(domain string, format string, args ...interface{})

	// Debug logs a debug message.
	Debug(format string, args ...interface{})
	DebugWithDomain(domain string, format string, args ...interface{})

	// Notice logs a notice message.
	Notice(format string, args ...interface{})
	NoticeWithDomain(domain string, format string, args ...interface{})
}

// EmptyLogger is a simple implementation of the Logger interface that does nothing.
type EmptyLogger struct{}

var _ Logger = (*EmptyLogger)(nil)

func (l *EmptyLogger) Info(_ string, _ ...interface{})                      {}
func (l *EmptyLogger) InfoWithDomain(_ string, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Error(_ string, _ ...interface{})                     {}
func (l *EmptyLogger) ErrorWithDomain(_ string, _ string, _ ...interface{}) {}
func (l *EmptyLogger) Debug(_ string, _ ...interface{})                     {}
func (l *EmptyLogger) DebugWithDomain(_ string, _ string, _ ...interface{}) {}
func (l *EmptyLogger) Notice(_ string, _ ...interface{})                    {}
func (l *EmptyLogger) NoticeWithDomain(_ string, _ string, _ ...interface{}) {
}

// StdLogger is a standard implementation of the Logger interface that logs messages to the console.
type StdLogger struct {
	enableColoring bool
	level          Level
	mu             sync.Mutex
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(enableColoring bool, level Level) *StdLogger {
	return &StdLogger{
		enableColoring: enableColoring,
		level:          level,
	}
}

// formatMessage formats the log message with the appropriate log level, domain prefix, and coloring if enabled.
func (l *StdLogger) formatMessage(level Level, domain Domain, format string) string {
	domainPrefix := domainPrefixes[domain]
	if l.enableColoring {
		domainPrefix = color.New(colors[domain]).Sprint(domainPrefix)
	}

	var levelStr string
	switch level {
	case DebugLevel:
		levelStr = "[DEBUG]  "
	case InfoLevel:
		levelStr = "[INFO]   "
	case NoticeLevel:
		levelStr = "[NOTICE] "
	case ErrorLevel:
		levelStr = "[ERROR]  "
	}

	return levelStr + domainPrefix + format
}

func (l *StdLogger) Info(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= InfoLevel {
		log.Printf(l.formatMessage(InfoLevel, None, format), args...)
	}
}

func (l *StdLogger) InfoWithDomain(domain string, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.level <= InfoLevel {
		log.Printf(l.formatMessage(InfoLevel, domainMap[strings.ToLower(domain)], format), args...)
	}
}

func (l *StdLogger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= ErrorLevel {
		log.Printf(l.formatMessage(ErrorLevel, None, format), args...)
	}
}

func (l *StdLogger) ErrorWithDomain(domain string, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.level <= ErrorLevel {
		log.Printf(l.formatMessage(ErrorLevel, domainMap[strings.ToLower(domain)], format), args...)
	}
}

func (l *StdLogger) Debug(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= DebugLevel {
		log.Printf(l.formatMessage(DebugLevel, None, format), args...)
	}
}

func (l *StdLogger) DebugWithDomain(domain string, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.level <= DebugLevel {
		log.Printf(l.formatMessage(DebugLevel, domainMap[strings.ToLower(domain)], format), args...)
	}
}

func (l *StdLogger) Notice(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= NoticeLevel {
		log.Printf(l.formatMessage(NoticeLevel, None, format), args...)
	}
}

func (l *StdLogger) NoticeWithDomain(domain string, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.level <= NoticeLevel {
		log.Printf(l.formatMessage(NoticeLevel, domainMap[strings.ToLower(domain)], format), args...)
	}
}
