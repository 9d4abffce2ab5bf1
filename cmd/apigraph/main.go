package main

import (
	"fmt"
	"os"
	"strings"
)

const version = "0.1.0-dev"

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		// No subcommand — default to compile
		return runCompile(os.Args[1:])
	}

	switch os.Args[1] {
	case "compile":
		return runCompile(os.Args[2:])
	case "import":
		return runImport(os.Args[2:])
	case "--version", "-v":
		fmt.Println("apigraph", version)
		return 0
	case "--help", "-h":
		printUsage()
		return 0
	default:
		// Check if first arg starts with - (it's a flag, not a subcommand)
		if strings.HasPrefix(os.Args[1], "-") {
			return runCompile(os.Args[1:])
		}
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Println("apigraph - API schema compiler: type graph in, schema document and route manifest out")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  apigraph [flags]                  Compile (default)")
	fmt.Println("  apigraph compile [flags]          Compile an interchange document or Go packages")
	fmt.Println("  apigraph import [flags] <file>    Import an OpenAPI document and recompile it")
	fmt.Println()
	fmt.Println("Global Flags:")
	fmt.Println("  --version, -v          Print version and exit")
	fmt.Println("  --help, -h             Print this help message")
	fmt.Println()
	fmt.Println("Compile Flags:")
	fmt.Println("  --config <path>        Path to apigraph.config.json")
	fmt.Println("  --document <path>      Interchange document input (overrides config)")
	fmt.Println("  --packages <patterns>  Comma-separated Go package patterns to scan (overrides config)")
	fmt.Println("  --strict               Treat warnings as errors")
	fmt.Println("  --quiet                Suppress warnings")
	fmt.Println("  --no-cache             Ignore the build cache and always recompile")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  apigraph")
	fmt.Println("  apigraph compile --document types.json")
	fmt.Println("  apigraph compile --packages ./... --strict")
	fmt.Println("  apigraph import openapi.json --schema dist/schema.json")
	fmt.Println()
}
