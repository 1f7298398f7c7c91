// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"flag"
	"log"
	"os"

	"golang.org/x/term"

	"github.com/ezrec/bpfasm/config"
	"github.com/ezrec/bpfasm/ebpf"
	"github.com/ezrec/bpfasm/helper"
	"github.com/ezrec/bpfasm/io"
	"github.com/ezrec/bpfasm/translate"
)

func main() {
	var compile string
	var decompile string
	var output string
	var configFile string
	var format string
	var lang string
	var verbose bool

	flag.StringVar(&compile, "c", "", "assembly file to compile")
	flag.StringVar(&decompile, "d", "", "binary file to disassemble")
	flag.StringVar(&output, "o", "-", "output file")
	flag.StringVar(&configFile, "config", "", "Starlark configuration file")
	flag.StringVar(&format, "f", "", "binary format: raw or hex (default hex on a terminal)")
	flag.StringVar(&lang, "lang", "", "message language")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	if len(lang) != 0 {
		err := translate.Use(lang)
		if err != nil {
			log.Fatalf("%v: %v", lang, err)
		}
	}

	if (len(compile) == 0) == (len(decompile) == 0) {
		log.Fatalf("%v: exactly one of -c or -d is required", os.Args[0])
	}

	cfg := &config.Config{}
	cfg.Options.Helpers = helper.Linux()
	if len(configFile) != 0 {
		var err error
		cfg, err = config.Load(configFile, nil)
		if err != nil {
			log.Fatalf("%v: %v", configFile, err)
		}
	}
	verbose = verbose || cfg.Verbose

	ouf := os.Stdout
	if output != "-" {
		var err error
		ouf, err = os.Create(output)
		if err != nil {
			log.Fatalf("%v: %v", output, err)
		}
		defer ouf.Close()
	}

	// The format applies to the binary side: the output when compiling,
	// the input when disassembling.
	tape := &io.Tape{Output: ouf}
	switch {
	case len(format) != 0:
		var err error
		tape.Format, err = io.ParseFormat(format)
		if err != nil {
			log.Fatalf("%v: %v", format, err)
		}
	case len(compile) != 0 && term.IsTerminal(int(ouf.Fd())):
		tape.Format = io.FORMAT_HEX
	}

	// Compile an assembly program.
	if len(compile) != 0 {
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()

		asm := &ebpf.Assembler{Verbose: verbose, Helpers: cfg.Options.Helpers}
		prog, err := asm.Parse(inf)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}

		data, err := prog.Binary()
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}

		err = tape.Store(data)
		if err != nil {
			log.Fatalf("%v: %v", output, err)
		}
		return
	}

	// Disassemble a binary stream.
	inf, err := os.Open(decompile)
	if err != nil {
		log.Fatalf("%v: %v", decompile, err)
	}
	defer inf.Close()

	tape.Input = inf
	data, err := tape.Load()
	if err != nil {
		log.Fatalf("%v: %v", decompile, err)
	}

	dis := &ebpf.Disassembler{Verbose: verbose, Options: cfg.Options}
	lines, err := dis.Disassemble(data)
	if err != nil {
		log.Fatalf("%v: %v", decompile, err)
	}

	err = tape.StoreLines(lines)
	if err != nil {
		log.Fatalf("%v: %v", output, err)
	}
}
