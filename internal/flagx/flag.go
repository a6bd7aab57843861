// Package flagx lets several components parse their own subset of os.Args
// without tripping over each other's flags.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns only the arguments that belong to allowedFlags, keeping
// their values. Both "-f value" and "-f=value" forms are recognised; a token
// starting with "-" is never taken as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	return FilterArgsWithBools(args, allowedFlags, nil)
}

// FilterArgsWithBools behaves like FilterArgs, but flags listed in boolFlags
// never consume the following argument, matching the flag package where a
// boolean can only be set as "-f" or "-f=false".
func FilterArgsWithBools(args []string, valueFlags []string, boolFlags []string) []string {
	values := toSet(valueFlags)
	bools := toSet(boolFlags)

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := values[name]; ok {
				filtered = append(filtered, arg)
			} else if _, ok := bools[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := bools[arg]; ok {
			filtered = append(filtered, arg)
			continue
		}

		if _, ok := values[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// JsonConfigFlags returns the config file path given with -c or -config,
// or an empty string when neither is present.
func JsonConfigFlags() string {
	var config string

	args := FilterArgs(os.Args[1:], []string{"-c", "-config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(args)

	return config
}
