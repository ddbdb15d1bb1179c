package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

const template = `# StreamSynth Pipeline
source file("./input.json")
filter(event.statusCode >= 400)
transform({ code: event.statusCode, url: event.url, timestamp: event.timestamp })
sink file("./output.json")
bufferSize 1000
`

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "streamsynth",
		Usage:     "Continuous data processing pipelines",
		UsageText: "streamsynth <command> [flags] <file>",
		Writer:    stdout,
		ErrWriter: stderr,
		// No command, or an unknown one, prints usage and succeeds.
		Action: func(c *cli.Context) error {
			if name := c.Args().First(); name != "" {
				fmt.Fprintf(c.App.Writer, "Unknown command: %s\n\n", name)
			}
			return cli.ShowAppHelp(c)
		},
		Commands: []*cli.Command{
			newRunCmd(),
			newCreateCmd(),
			newRunsCmd(),
		},
	}
}

func newCreateCmd() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Write a pipeline template",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("create requires a file name")
			}
			if err := os.WriteFile(path, []byte(template), 0644); err != nil {
				return fmt.Errorf("failed to create template: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "Template created at %s\n", path)
			return nil
		},
	}
}
