package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ironsheep/fibre-mesh/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// command is one fibre-mesh subcommand.
type command struct {
	name    string
	summary string
	run     func(args []string) error
}

var commands = []command{
	{"run", "detect, encode and optionally mesh micrographs", runPipeline},
	{"detect", "detect fibres in a micrograph and write the circle list", runDetect},
	{"encode", "encode a circle list as a Gmsh .geo geometry", runEncode},
	{"mesh", "run gmsh on a geometry and check the mesh", runMesh},
	{"summary", "summarise a .msh file per physical group", runSummary},
	{"scalebar", "read the scale bar of a micrograph", runScaleBar},
	{"profiles", "list or export detection profiles", runProfiles},
	{"serve", "run the MCP server on stdin/stdout", runServe},
}

func main() {
	// Configure logging to stderr (stdout is for results and MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "--version", "version":
		fmt.Printf("fibre-mesh %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		printUsage()
		return
	}

	for _, c := range commands {
		if c.name != os.Args[1] {
			continue
		}
		err := c.run(os.Args[2:])
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "fibre-mesh %s: %v\n", c.name, err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "fibre-mesh: unknown command %q\n\n", os.Args[1])
	printUsage()
	os.Exit(2)
}

func printUsage() {
	fmt.Println("fibre-mesh - fibre micrograph to Gmsh mesh")
	fmt.Println()
	fmt.Println("Usage: fibre-mesh <command> [options] [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	for _, c := range commands {
		fmt.Printf("  %-10s %s\n", c.name, c.summary)
	}
	fmt.Printf("  %-10s %s\n", "version", "print version information")
	fmt.Println()
	fmt.Println("Run 'fibre-mesh <command> -h' for the options of a command.")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  FIBRE_MESH_LOG_LEVEL=debug   Enable debug logging")
	fmt.Println("  FIBRE_MESH_GMSH=<path>       gmsh binary (default: gmsh on PATH)")
}

// debugEnabled reports whether debug logging was requested by flag or
// environment.
func debugEnabled(verbose bool) bool {
	return verbose || os.Getenv("FIBRE_MESH_LOG_LEVEL") == "debug"
}

func runServe(args []string) error {
	fs := newFlagSet("serve", "")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if debugEnabled(*verbose) {
		log.Printf("Fibre mesh MCP server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	server.Version = Version
	srv := server.New()
	if err := srv.Run(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
