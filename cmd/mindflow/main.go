// Command mindflow converts CSV and Mermaid text into diagram payloads and
// serves them over HTTP and MCP.
package main

import (
	"fmt"
	"io"
	"os"
)

const usage = `Usage: mindflow <command> [flags]

Commands:
  parse <type> [file]      parse text into a renderer payload
  validate <type> [file]   strictly check text, exit 1 when invalid
  render <type> [file]     render text as Mermaid or ASCII
  query <type> [file]      evaluate a jq, expr or CEL expression over a diagram
  sample <type>            print the built-in example input
  template <type>          print a starter template
  serve                    run the HTTP API
  mcp                      run the MCP server on stdio
  install-tools            install mermaid-ascii and write settings
  version                  print the version

Types: mindmap, gantt, flowchart. Input is read from stdin when no file is given.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "parse":
		return runParse(rest, stdin, stdout, stderr)
	case "validate":
		return runValidate(rest, stdin, stdout, stderr)
	case "render":
		return runRender(rest, stdin, stdout, stderr)
	case "query":
		return runQuery(rest, stdin, stdout, stderr)
	case "sample":
		return runSample(rest, stdout, stderr)
	case "template":
		return runTemplate(rest, stdout, stderr)
	case "serve":
		return runServe(rest, stderr)
	case "mcp":
		return runMCP(rest, stderr)
	case "install-tools":
		return runInstall(rest, stdout, stderr)
	case "version", "--version", "-v":
		printVersion(stdout)
		return 0
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
}
