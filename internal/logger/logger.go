package logger

// Log levels used across the application.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Options configures the console and optional rotating file output.
type Options struct {
	Level string

	// File enables a rotating log file next to stdout when non-empty.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New returns a logger configured with the provided options.
func New(opts Options) *Logger {
	return newZapLogger(opts)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return newNopLogger()
}
