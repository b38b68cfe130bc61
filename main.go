// Command glass compiles and runs Glass source files: glass run
// <files...> parses and executes them to completion, glass debug
// <files...> steps through the compiled bytecode interactively.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/glasslang/glass/debugger"
	"github.com/glasslang/glass/parser"
	"github.com/glasslang/glass/vm"
)

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
	traceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8700"))
)

func styledf(style lipgloss.Style, noColor bool, format string, args ...any) string {
	s := fmt.Sprintf(format, args...)
	if noColor {
		return s
	}
	return style.Render(s)
}

func loadSources(paths []string) ([]parser.Source, error) {
	sources := make([]parser.Source, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		sources[i] = parser.Source{Name: p, Data: data}
	}
	return sources, nil
}

func runFiles(paths []string) int {
	noColor := os.Getenv("NO_COLOR") != ""

	sources, err := loadSources(paths)
	if err != nil {
		fmt.Fprintln(os.Stderr, styledf(errorStyle, noColor, "%s", err))
		return 1
	}

	prog, perr := parser.Parse(sources)
	if perr != nil {
		fmt.Fprintln(os.Stderr, styledf(errorStyle, noColor, "%s", perr))
		return 1
	}

	machine := vm.New(prog, os.Stdin, os.Stdout)
	if rerr := machine.Run(); rerr != nil {
		re, ok := rerr.(*vm.RuntimeError)
		if !ok {
			fmt.Fprintln(os.Stderr, styledf(errorStyle, noColor, "%s", rerr))
			return 1
		}
		fmt.Fprintln(os.Stderr, styledf(errorStyle, noColor, "%s", re.Tag))
		fmt.Fprintln(os.Stderr, "Traceback:")
		for _, frame := range re.Trace {
			line := fmt.Sprintf("In file %s on line %d, column %d", frame.File, frame.Pos.Line, frame.Pos.Col)
			fmt.Fprintln(os.Stderr, styledf(traceStyle, noColor, "%s", line))
		}
		return 1
	}

	return 0
}

func debugFiles(paths []string) int {
	sources, err := loadSources(paths)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	prog, perr := parser.Parse(sources)
	if perr != nil {
		fmt.Fprintln(os.Stderr, perr)
		return 1
	}

	noColor := os.Getenv("NO_COLOR") != ""
	if err := debugger.Start(prog, debugger.Options{NoColor: noColor}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "glass <file1> [<file2> ...]",
		Short: "Glass compiles and runs Glass esoteric-language source files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(runFiles(args))
			return nil
		},
	}

	runCmd := &cobra.Command{
		Use:   "run <file1> [<file2> ...]",
		Short: "Parse and run one or more Glass source files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(runFiles(args))
			return nil
		},
	}

	debugCmd := &cobra.Command{
		Use:   "debug <file1> [<file2> ...]",
		Short: "Step through the compiled bytecode of one or more Glass source files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(debugFiles(args))
			return nil
		},
	}

	root.AddCommand(runCmd, debugCmd)
	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
