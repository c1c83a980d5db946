// Command txlat statically translates a flat file of x86-64 guest
// instruction bytes into either a standalone ELF64 executable or a
// relocatable ET_REL object file. ELF parsing of the input is out of
// scope: callers supply the already-extracted .text bytes directly.
package main

import (
	"flag"
	"fmt"
	"os"

	"arancini/ir"
	x86lift "arancini/input/x86"
	"arancini/output/static"
)

func main() {
	object := flag.Bool("c", false, "emit a relocatable object file instead of a standalone executable")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: txlat [-c] <guest-code-file>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	if err := run(flag.Arg(0), *object); err != nil {
		fmt.Fprintf(os.Stderr, "txlat: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, object bool) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	resolver := ir.NewFunctionResolver(x86lift.FunctionProvider{})
	lifter := x86lift.NewLifter(resolver)
	chunk, err := lifter.Lift(code, 0)
	if err != nil {
		return fmt.Errorf("lift: %w", err)
	}

	engine := static.NewEngine()
	if err := engine.AddChunk(chunk); err != nil {
		return fmt.Errorf("lower: %w", err)
	}

	if object {
		out, err := engine.GenerateObject()
		if err != nil {
			return fmt.Errorf("generate object: %w", err)
		}
		if err := os.WriteFile("a.o", out, 0644); err != nil {
			return fmt.Errorf("write a.o: %w", err)
		}
		return nil
	}

	out, err := engine.Generate()
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	if err := os.WriteFile("a.out", out, 0755); err != nil {
		return fmt.Errorf("write a.out: %w", err)
	}
	return nil
}
