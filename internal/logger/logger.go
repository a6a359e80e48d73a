package logger

import (
	"fmt"
	"log"
	"os"
)

var (
	// Debug flag to control debug logging
	debugEnabled = false
	// The logger instances, usable before Init for early failures and tests
	debugLogger = log.New(os.Stdout, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
	infoLogger  = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime)
	warnLogger  = log.New(os.Stdout, "WARN: ", log.Ldate|log.Ltime)
	errorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
)

// Init initializes the logger.
func Init(debug bool) {
	debugEnabled = debug

	if debugEnabled {
		Debug("Debug logging enabled")
	}
}

// Debug logs a debug message if debug mode is enabled.
func Debug(format string, v ...interface{}) {
	if debugEnabled {
		debugLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	infoLogger.Output(2, fmt.Sprintf(format, v...))
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	warnLogger.Output(2, fmt.Sprintf(format, v...))
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	errorLogger.Output(2, fmt.Sprintf(format, v...))
}

// IsDebugEnabled returns whether debug logging is enabled.
func IsDebugEnabled() bool {
	return debugEnabled
}

// Component-prefixed helpers. These keep log lines greppable per subsystem
// without threading a logger instance through every constructor.

func componentDebug(prefix, format string, v ...interface{}) {
	if debugEnabled {
		debugLogger.Output(3, prefix+fmt.Sprintf(format, v...))
	}
}

func componentInfo(prefix, format string, v ...interface{}) {
	infoLogger.Output(3, prefix+fmt.Sprintf(format, v...))
}

func componentWarn(prefix, format string, v ...interface{}) {
	warnLogger.Output(3, prefix+fmt.Sprintf(format, v...))
}

func componentError(prefix, format string, v ...interface{}) {
	errorLogger.Output(3, prefix+fmt.Sprintf(format, v...))
}

// Bot (Telegram surface) logging.

func BotDebug(format string, v ...interface{}) { componentDebug("[bot] ", format, v...) }
func BotInfo(format string, v ...interface{})  { componentInfo("[bot] ", format, v...) }
func BotWarn(format string, v ...interface{})  { componentWarn("[bot] ", format, v...) }
func BotError(format string, v ...interface{}) { componentError("[bot] ", format, v...) }

// LLM (Azure chat/embeddings) logging.

func LLMDebug(format string, v ...interface{}) { componentDebug("[llm] ", format, v...) }
func LLMInfo(format string, v ...interface{})  { componentInfo("[llm] ", format, v...) }
func LLMWarn(format string, v ...interface{})  { componentWarn("[llm] ", format, v...) }
func LLMError(format string, v ...interface{}) { componentError("[llm] ", format, v...) }

// Store (Milvus) logging.

func StoreDebug(format string, v ...interface{}) { componentDebug("[store] ", format, v...) }
func StoreInfo(format string, v ...interface{})  { componentInfo("[store] ", format, v...) }
func StoreWarn(format string, v ...interface{})  { componentWarn("[store] ", format, v...) }
func StoreError(format string, v ...interface{}) { componentError("[store] ", format, v...) }

// Ingest pipeline logging.

func IngestDebug(format string, v ...interface{}) { componentDebug("[ingest] ", format, v...) }
func IngestInfo(format string, v ...interface{})  { componentInfo("[ingest] ", format, v...) }
func IngestError(format string, v ...interface{}) { componentError("[ingest] ", format, v...) }

// Monitor (dashboard) logging.

func MonitorInfo(format string, v ...interface{})  { componentInfo("[monitor] ", format, v...) }
func MonitorError(format string, v ...interface{}) { componentError("[monitor] ", format, v...) }
