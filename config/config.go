// Package config loads disassembler options from Starlark files.
//
// A configuration file is a Starlark program. These globals are
// recognized after it executes:
//
//	endian = "suffix"          # or "be_le"
//	helpers = linux_helpers()  # list of names, or dict of id to name
//	relative_targets = False
//	annotate = False
//	strict_helpers = False
//	verbose = False
//
// Unrecognized globals are ignored.
package config

import (
	"errors"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/bpfasm/ebpf"
	"github.com/ezrec/bpfasm/helper"
	"github.com/ezrec/bpfasm/translate"
)

var f = translate.From

var (
	ErrHelpersType = errors.New(f("helpers must be a list or dict"))
)

// ErrGlobalType is a recognized global with the wrong type.
type ErrGlobalType struct {
	Name string
	Want string
}

func (err *ErrGlobalType) Error() string {
	return f("'%v' must be a %v", err.Name, err.Want)
}

// Config is the result of loading a configuration file.
type Config struct {
	Options ebpf.Options
	Verbose bool
}

// linuxHelpers is the linux_helpers() builtin.
func linuxHelpers(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (value starlark.Value, err error) {
	err = starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0)
	if err != nil {
		return
	}

	names := helper.Linux().Names()
	values := make([]starlark.Value, len(names))
	for n, name := range names {
		values[n] = starlark.String(name)
	}

	value = starlark.NewList(values)
	return
}

var predeclared = starlark.StringDict{
	"linux_helpers": starlark.NewBuiltin("linux_helpers", linuxHelpers),
}

// Load executes a configuration file. If src is nil, the file is read
// from filename; otherwise src is a string, []byte or io.Reader.
func Load(filename string, src any) (cfg *Config, err error) {
	thread := &starlark.Thread{Name: filename}
	opts := &syntax.FileOptions{}

	globals, err := starlark.ExecFileOptions(opts, thread, filename, src, predeclared)
	if err != nil {
		return
	}

	cfg = &Config{}

	if value, ok := globals["endian"]; ok {
		name, ok := starlark.AsString(value)
		if !ok {
			return nil, &ErrGlobalType{Name: "endian", Want: "string"}
		}
		cfg.Options.Endian, err = ebpf.ParseEndianStyle(name)
		if err != nil {
			return nil, err
		}
	}

	if value, ok := globals["helpers"]; ok {
		cfg.Options.Helpers, err = helperTable(value)
		if err != nil {
			return nil, err
		}
	}

	for name, flag := range map[string]*bool{
		"relative_targets": &cfg.Options.RelativeTargets,
		"annotate":         &cfg.Options.Annotate,
		"strict_helpers":   &cfg.Options.StrictHelpers,
		"verbose":          &cfg.Verbose,
	} {
		value, ok := globals[name]
		if !ok {
			continue
		}
		truth, ok := value.(starlark.Bool)
		if !ok {
			return nil, &ErrGlobalType{Name: name, Want: "bool"}
		}
		*flag = bool(truth)
	}

	return
}

// helperTable converts a list of names, or a dict of id to name.
func helperTable(value starlark.Value) (table *helper.Table, err error) {
	switch value := value.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.String, starlark.Bytes:
		return nil, ErrHelpersType
	case starlark.Indexable:
		names := make([]string, value.Len())
		for n := range value.Len() {
			name, ok := starlark.AsString(value.Index(n))
			if !ok {
				return nil, &ErrGlobalType{Name: "helpers", Want: "list of strings"}
			}
			names[n] = name
		}
		return helper.New(names...)
	case *starlark.Dict:
		names := make(map[int64]string, value.Len())
		for _, item := range value.Items() {
			var id int64
			err = starlark.AsInt(item[0], &id)
			if err != nil {
				return nil, &ErrGlobalType{Name: "helpers", Want: "dict of int to string"}
			}
			name, ok := starlark.AsString(item[1])
			if !ok {
				return nil, &ErrGlobalType{Name: "helpers", Want: "dict of int to string"}
			}
			names[id] = name
		}
		return helper.FromMap(names)
	}

	err = ErrHelpersType
	return
}
