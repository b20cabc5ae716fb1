package gpgforge

import (
	"runtime"
	"sync"

	"github.com/gookit/color"
)

// Global variables
var (
	WorkDir    string // scratch workspace for fetch/extract/build
	Prefix     string // shared install prefix (include/ + lib/)
	CacheStore string // downloaded source tarballs
	LogDir     string // per-library build logs
	Triple     string // cross-compilation target triple, fixed for the run
	Debug      bool
	Verbose    bool
	ConfigFile = "/etc/gpgforge.conf"
	SourceBase = "https://gnupg.org/ftp/gcrypt"

	mirrorMessageOnce sync.Once

	version   = "dev" //default version; overridden at build time
	arch      = runtime.GOARCH
	buildDate = "unknown" // overridden at build time

	// Global executors (declared, to be assigned in Main)
	UserExec *Executor
	RootExec *Executor
)

// color helpers
var (
	colInfo    = color.Info // style provided by gookit/color
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
)
