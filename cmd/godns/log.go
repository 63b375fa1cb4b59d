package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const LOG_OUTPUT_BUFFER = 1024

const (
	LevelDebug = iota
	LevelInfo
	LevelNotice
	LevelWarn
	LevelError
)

var zerologLevels = map[int]zerolog.Level{
	LevelDebug:  zerolog.DebugLevel,
	LevelInfo:   zerolog.InfoLevel,
	LevelNotice: zerolog.InfoLevel,
	LevelWarn:   zerolog.WarnLevel,
	LevelError:  zerolog.ErrorLevel,
}

type logMesg struct {
	Level int
	Mesg  string
}

type LoggerHandler interface {
	Setup(config map[string]interface{}) error
	Write(mesg *logMesg)
}

type GoDNSLogger struct {
	level   int
	mesgs   chan *logMesg
	outputs map[string]LoggerHandler
	mu      sync.RWMutex
	pending sync.WaitGroup

	// guards closed and pending.Add against Close
	closeMu sync.RWMutex
	closed  bool
}

func NewLogger() *GoDNSLogger {
	logger := &GoDNSLogger{
		mesgs:   make(chan *logMesg, LOG_OUTPUT_BUFFER),
		outputs: make(map[string]LoggerHandler),
	}
	go logger.Run()
	return logger
}

func (l *GoDNSLogger) SetLogger(handlerType string, config map[string]interface{}) error {
	var handler LoggerHandler
	switch handlerType {
	case "console":
		handler = NewConsoleHandler()
	case "file":
		handler = NewFileHandler()
	default:
		return fmt.Errorf("unknown log handler: %s", handlerType)
	}

	if err := handler.Setup(config); err != nil {
		return err
	}
	l.mu.Lock()
	l.outputs[handlerType] = handler
	l.mu.Unlock()
	return nil
}

func (l *GoDNSLogger) SetLevel(level int) {
	l.level = level
}

func (l *GoDNSLogger) Run() {
	for mesg := range l.mesgs {
		l.mu.RLock()
		for _, handler := range l.outputs {
			handler.Write(mesg)
		}
		l.mu.RUnlock()
		l.pending.Done()
	}
}

// Close drops every later message and blocks until the queued ones have
// been handed to the handlers.
func (l *GoDNSLogger) Close() {
	l.closeMu.Lock()
	l.closed = true
	l.closeMu.Unlock()
	l.pending.Wait()
}

func (l *GoDNSLogger) writeMesg(mesg string, level int) {
	if l.level > level {
		return
	}

	l.closeMu.RLock()
	if l.closed {
		l.closeMu.RUnlock()
		return
	}
	l.pending.Add(1)
	l.closeMu.RUnlock()

	l.mesgs <- &logMesg{
		Level: level,
		Mesg:  mesg,
	}
}

func (l *GoDNSLogger) Debug(format string, v ...interface{}) {
	l.writeMesg(fmt.Sprintf(format, v...), LevelDebug)
}

func (l *GoDNSLogger) Info(format string, v ...interface{}) {
	l.writeMesg(fmt.Sprintf(format, v...), LevelInfo)
}

func (l *GoDNSLogger) Notice(format string, v ...interface{}) {
	l.writeMesg(fmt.Sprintf(format, v...), LevelNotice)
}

func (l *GoDNSLogger) Warn(format string, v ...interface{}) {
	l.writeMesg(fmt.Sprintf(format, v...), LevelWarn)
}

func (l *GoDNSLogger) Error(format string, v ...interface{}) {
	l.writeMesg(fmt.Sprintf(format, v...), LevelError)
}

// zerologHandler filters on its own level and writes through zerolog.
type zerologHandler struct {
	level  int
	logger *zerolog.Logger
}

func (h *zerologHandler) setLevel(config map[string]interface{}) {
	if level, ok := config["level"]; ok {
		h.level = level.(int)
	}
}

func (h *zerologHandler) setOutput(w io.Writer) {
	logger := zerolog.New(w).With().Timestamp().Logger()
	h.logger = &logger
}

func (h *zerologHandler) Write(lm *logMesg) {
	if h.logger == nil || h.level > lm.Level {
		return
	}

	e := h.logger.WithLevel(zerologLevels[lm.Level])
	if lm.Level == LevelNotice {
		e = e.Bool("notice", true)
	}
	e.Msg(lm.Mesg)
}

type ConsoleHandler struct {
	zerologHandler
}

func NewConsoleHandler() LoggerHandler {
	return new(ConsoleHandler)
}

func (h *ConsoleHandler) Setup(config map[string]interface{}) error {
	h.setLevel(config)
	h.setOutput(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime, NoColor: true})
	return nil
}

type FileHandler struct {
	zerologHandler
	file string
}

func NewFileHandler() LoggerHandler {
	return new(FileHandler)
}

func (h *FileHandler) Setup(config map[string]interface{}) error {
	h.setLevel(config)

	if file, ok := config["file"]; ok {
		h.file = file.(string)
		output, err := os.OpenFile(h.file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		h.setOutput(output)
	}

	return nil
}
