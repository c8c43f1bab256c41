package config

import (
	"os"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Source says which layer a resolved value came from.
type Source string

const (
	SourceFlag    Source = "flag"
	SourceEnv     Source = "env"
	SourceFile    Source = "file"
	SourceDefault Source = "default"
)

// Resolution describes where one key's value came from.
type Resolution struct {
	Key    string
	Value  any
	Source Source
}

// Explain reports the source of every known key, sorted by key. fs may be
// nil when no flags were bound.
func Explain(v *viper.Viper, fs *pflag.FlagSet) []Resolution {
	changed := map[string]bool{}
	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil && f.Changed {
				changed[key] = true
			}
		}
	}

	keys := v.AllKeys()
	slices.Sort(keys)
	out := make([]Resolution, 0, len(keys))
	for _, key := range keys {
		r := Resolution{Key: key, Value: v.Get(key), Source: SourceDefault}
		switch {
		case changed[key]:
			r.Source = SourceFlag
		case envSet(key):
			r.Source = SourceEnv
		case v.InConfig(key):
			r.Source = SourceFile
		}
		out = append(out, r)
	}
	return out
}

func envSet(key string) bool {
	names := []string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
	switch key {
	case "no_color":
		names = append(names, "NO_COLOR")
	case "ci":
		names = append(names, "CI")
	}
	for _, n := range names {
		if _, ok := os.LookupEnv(n); ok {
			return true
		}
	}
	return false
}
