package log

import (
	"log"
	"os"

	"github.com/fatih/color"
)

// Leveled loggers shared by every package. Failures are logged here before
// being converted into user-facing messages, so nothing escapes silently.
var (
	Info  *log.Logger
	Warn  *log.Logger
	Error *log.Logger
)

func init() {
	Info = log.New(os.Stdout,
		color.GreenString("[INFO] "),
		log.LstdFlags|log.Lmsgprefix)
	Warn = log.New(os.Stdout,
		color.YellowString("[WARN] "),
		log.LstdFlags|log.Lmsgprefix)

	Error = log.New(os.Stderr,
		color.RedString("[ERROR] "),
		log.LstdFlags|log.Lmsgprefix)
}
