// Package flagx lets several flag sets share one command line: each parser
// keeps only the flags it knows and ignores the rest.
package flagx

import (
	"flag"
	"io"
	"strings"

	"github.com/samber/lo"
)

// FilterArgs returns the arguments of args that name one of the allowed
// flags, together with their values.
//
// Supported formats:
//  1. Flag and value as separate arguments:  -c shop.json
//  2. Flag and value combined with '=':      -package=shop
//
// A following argument that starts with "-" is never taken as a value, so
// a boolean flag may stand alone.
//
// Parameters:
//
//	args    - the command-line arguments (usually os.Args[1:])
//	allowed - the allowed flag names (e.g. []string{"-c", "-config"})
//
// Example:
//
//	FilterArgs([]string{"-c", "shop.json", "-id", "4"}, []string{"-c"})
//	// []string{"-c", "shop.json"}
func FilterArgs(args []string, allowed []string) []string {
	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if lo.Contains(allowed, name) {
				filtered = append(filtered, arg)
			}
			continue
		}

		if !lo.Contains(allowed, arg) {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// Names returns the "-name" form of every flag defined on fs.
func Names(fs *flag.FlagSet) []string {
	var names []string
	fs.VisitAll(func(f *flag.Flag) { names = append(names, "-"+f.Name) })
	return names
}

// Parse parses the arguments of args that fs defines.
func Parse(fs *flag.FlagSet, args []string) error {
	return fs.Parse(FilterArgs(args, Names(fs)))
}

// ConfigPath returns the config file named by -c or -config, or "".
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = Parse(fs, args)

	return path
}
