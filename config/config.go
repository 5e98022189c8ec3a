package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/BurntSushi/toml"
)

type config struct {
	cfg  Config
	meta toml.MetaData
}

func mergeLists(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, el := range b {
		if el == "inherit" {
			out = append(out, a...)
		} else {
			out = append(out, el)
		}
	}
	return out
}

func normalizeList(list []string) []string {
	list = slices.Clone(list)
	if len(list) > 1 {
		sort.Strings(list)
		nlist := make([]string, 0, len(list))
		nlist = append(nlist, list[0])
		for i, el := range list[1:] {
			if el != list[i] {
				nlist = append(nlist, el)
			}
		}
		list = nlist
	}

	for _, el := range list {
		if el == "inherit" {
			// This should never happen, because the default config
			// should not use "inherit"
			panic(`unresolved "inherit"`)
		}
	}

	return list
}

func (cfg config) Merge(ocfg config) config {
	if ocfg.meta.IsDefined("cse", "debug") {
		cfg.cfg.CSE.Debug = ocfg.cfg.CSE.Debug
	}
	if ocfg.meta.IsDefined("cse", "trace_level") {
		cfg.cfg.CSE.TraceLevel = ocfg.cfg.CSE.TraceLevel
	}
	if ocfg.meta.IsDefined("cse", "runtime_assertions") {
		cfg.cfg.CSE.RuntimeAssertions = ocfg.cfg.CSE.RuntimeAssertions
	}
	if ocfg.meta.IsDefined("cse", "workers") {
		cfg.cfg.CSE.Workers = ocfg.cfg.CSE.Workers
	}
	if ocfg.meta.IsDefined("cse", "pure_methods") {
		cfg.cfg.CSE.PureMethods = mergeLists(cfg.cfg.CSE.PureMethods, ocfg.cfg.CSE.PureMethods)
	}
	if ocfg.meta.IsDefined("cse", "safe_methods") {
		cfg.cfg.CSE.SafeMethods = mergeLists(cfg.cfg.CSE.SafeMethods, ocfg.cfg.CSE.SafeMethods)
	}
	return cfg
}

type Config struct {
	CSE CSEConfig `toml:"cse"`
}

type CSEConfig struct {
	// Debug enables tracing of the pass's decisions.
	Debug      bool `toml:"debug"`
	TraceLevel int  `toml:"trace_level"`
	// RuntimeAssertions keeps eliminated instructions and checks at
	// run time that they compute the forwarded value.
	RuntimeAssertions bool `toml:"runtime_assertions"`
	// Workers bounds the number of methods analyzed concurrently.
	// Zero means one per CPU.
	Workers int `toml:"workers"`
	// PureMethods lists methods, as Class.name(desc), whose result
	// depends only on their arguments and that have no side effects.
	PureMethods []string `toml:"pure_methods"`
	// SafeMethods lists methods that may write specific fields and
	// array elements but cannot cause arbitrary effects.
	SafeMethods []string `toml:"safe_methods"`
}

var defaultConfig = Config{
	CSE: defaultCSEConfig,
}

// Methods returning a new object are never pure by default: forwarding
// a second call would make two distinct objects identical.
var defaultCSEConfig = CSEConfig{
	TraceLevel: 1,
	PureMethods: []string{
		"java.lang.Math.abs(I)I",
		"java.lang.Math.abs(J)J",
		"java.lang.Math.max(II)I",
		"java.lang.Math.max(JJ)J",
		"java.lang.Math.min(II)I",
		"java.lang.Math.min(JJ)J",
		"java.lang.Integer.bitCount(I)I",
		"java.lang.Integer.compare(II)I",
		"java.lang.Long.bitCount(J)I",
		"java.lang.Long.compare(JJ)I",
		"java.lang.Character.isDigit(C)Z",
	},
	SafeMethods: []string{
		"java.lang.Object.<init>()V",
		"java.lang.Enum.<init>(Ljava/lang/String;I)V",
	},
}

const configName = "cse.conf"

func parseConfigs(dir string) ([]config, error) {
	var out []config

	for dir != "" {
		f, err := os.Open(filepath.Join(dir, configName))
		if os.IsNotExist(err) {
			ndir := filepath.Dir(dir)
			if ndir == dir {
				break
			}
			dir = ndir
			continue
		}
		if err != nil {
			return nil, err
		}
		var cfg Config
		meta, err := toml.DecodeReader(f, &cfg)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Join(dir, configName), err)
		}
		out = append(out, config{cfg, meta})
		ndir := filepath.Dir(dir)
		if ndir == dir {
			break
		}
		dir = ndir
	}
	out = append(out, config{
		cfg:  defaultConfig,
		meta: toml.MetaData{}, // meta of the base config should never be accessed
	})
	if len(out) < 2 {
		return out, nil
	}
	for i := 0; i < len(out)/2; i++ {
		out[i], out[len(out)-1-i] = out[len(out)-1-i], out[i]
	}
	return out, nil
}

func mergeConfigs(confs []config) Config {
	if len(confs) == 0 {
		// This shouldn't happen because we always have at least a
		// default config.
		panic("trying to merge zero configs")
	}
	if len(confs) == 1 {
		return confs[0].cfg
	}
	conf := confs[0]
	for _, oconf := range confs[1:] {
		conf = conf.Merge(oconf)
	}
	return conf.cfg
}

// Default returns the built-in configuration.
func Default() Config {
	conf := defaultConfig
	conf.CSE.PureMethods = normalizeList(conf.CSE.PureMethods)
	conf.CSE.SafeMethods = normalizeList(conf.CSE.SafeMethods)
	return conf
}

// Load merges the configuration files found in dir and its parents,
// the closest one taking precedence, on top of the built-in defaults.
func Load(dir string) (Config, error) {
	confs, err := parseConfigs(dir)
	if err != nil {
		return Config{}, err
	}
	conf := mergeConfigs(confs)

	conf.CSE.PureMethods = normalizeList(conf.CSE.PureMethods)
	conf.CSE.SafeMethods = normalizeList(conf.CSE.SafeMethods)

	if conf.CSE.Workers < 0 {
		return Config{}, fmt.Errorf("invalid number of workers %d", conf.CSE.Workers)
	}
	if conf.CSE.TraceLevel < 0 {
		return Config{}, fmt.Errorf("invalid trace level %d", conf.CSE.TraceLevel)
	}
	return conf, nil
}
