package mbp

import (
	"os"

	flags "github.com/jessevdk/go-flags"
)

// MustParseArgs parses os.Args into config via go-flags, exiting cleanly on
// -h/--help (go-flags already prints usage) and fatally logging any other
// parse error, mirroring wordcountctl's `flags.NewParser(Config,
// flags.Default)` plus command registration pattern.
func MustParseArgs(parser *flags.Parser) {
	var _, err = parser.Parse()
	if err == nil {
		return
	}
	if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
		os.Exit(0)
	}
	Must(err, "failed to parse arguments")
}
