package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rendis/mindflow/internal/convert"
	"github.com/rendis/mindflow/internal/diagram"
	"github.com/rendis/mindflow/internal/expressions"
	"github.com/rendis/mindflow/internal/gantt"
	"github.com/rendis/mindflow/internal/logging"
	"github.com/rendis/mindflow/internal/mermaid"
	"github.com/rendis/mindflow/internal/mindmap"
	"github.com/rendis/mindflow/internal/validation"
	"github.com/rendis/mindflow/pkg/schema"
)

// command holds what every text-processing subcommand shares.
type command struct {
	name   string
	fs     *flag.FlagSet
	typ    schema.DiagramType
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

// newCommand reads the diagram type from args[0]; flags and an optional
// input file follow it.
func newCommand(name string, args []string, stdin io.Reader, stdout, stderr io.Writer) (*command, []string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return nil, nil, fmt.Errorf("usage: mindflow %s <mindmap|gantt|flowchart> [flags] [file]", name)
	}
	typ, err := schema.ParseDiagramType(args[0])
	if err != nil {
		return nil, nil, err
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return &command{
		name:   name,
		fs:     fs,
		typ:    typ,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		logger: logging.New(stderr, loadConfig().LogLevel),
	}, args[1:], nil
}

// readInput returns the text of the named file, or stdin when none is given.
func (c *command) readInput() (string, error) {
	var r io.Reader = c.stdin
	if path := c.fs.Arg(0); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}

// fail prints err and returns the exit code for it.
func (c *command) fail(err error) int {
	fmt.Fprintf(c.stderr, "mindflow %s: %v\n", c.name, err)
	return 1
}

func usageError(stderr io.Writer, err error) int {
	fmt.Fprintln(stderr, err)
	return 2
}

func runParse(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c, rest, err := newCommand("parse", args, stdin, stdout, stderr)
	if err != nil {
		return usageError(stderr, err)
	}
	format := c.fs.String("format", "json", "output format: json, yaml, or csv (gantt only)")
	if err := c.fs.Parse(rest); err != nil {
		return 2
	}
	text, err := c.readInput()
	if err != nil {
		return c.fail(err)
	}

	res, err := convert.New(c.logger).Parse(context.Background(), c.typ, text)
	if err != nil {
		return c.fail(err)
	}

	if *format == "csv" {
		if res.Gantt == nil {
			return c.fail(errors.New("csv output is only available for gantt charts"))
		}
		out, err := gantt.EncodeCSV(res.Gantt.Tasks)
		if err != nil {
			return c.fail(err)
		}
		fmt.Fprint(stdout, out)
		return 0
	}
	if err := writeOutput(stdout, *format, res.Payload()); err != nil {
		return c.fail(err)
	}
	return 0
}

func runValidate(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c, rest, err := newCommand("validate", args, stdin, stdout, stderr)
	if err != nil {
		return usageError(stderr, err)
	}
	deep := c.fs.Bool("deep", false, "also check the parsed payload against its JSON Schema and semantic rules")
	if err := c.fs.Parse(rest); err != nil {
		return 2
	}
	text, err := c.readInput()
	if err != nil {
		return c.fail(err)
	}

	ctx := context.Background()
	conv := convert.New(c.logger)
	if ok, msg := conv.Validate(ctx, c.typ, text); !ok {
		fmt.Fprintln(stdout, msg)
		return 1
	}
	if *deep {
		res, err := conv.Parse(ctx, c.typ, text)
		if err != nil {
			return c.fail(err)
		}
		pv, err := validation.NewPayloadValidator()
		if err != nil {
			return c.fail(err)
		}
		vr := pv.Validate(c.typ, res.Payload())
		for _, w := range vr.Warnings {
			fmt.Fprintf(stdout, "warning: %s: %s\n", w.Path, w.Message)
		}
		if !vr.Valid() {
			for _, e := range vr.Errors {
				fmt.Fprintf(stdout, "error: %s: [%s] %s\n", e.Path, e.Code, e.Message)
			}
			return 1
		}
	}
	fmt.Fprintln(stdout, "valid")
	return 0
}

func runRender(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c, rest, err := newCommand("render", args, stdin, stdout, stderr)
	if err != nil {
		return usageError(stderr, err)
	}
	to := c.fs.String("to", "mermaid", "output: mermaid or ascii")
	bin := c.fs.String("mermaid-ascii-bin", loadConfig().MermaidASCIIBin, "mermaid-ascii binary for ASCII output")
	if err := c.fs.Parse(rest); err != nil {
		return 2
	}
	format, err := diagram.ParseFormat(*to)
	if err != nil {
		return usageError(stderr, err)
	}
	text, err := c.readInput()
	if err != nil {
		return c.fail(err)
	}

	ctx := context.Background()
	res, err := convert.New(c.logger).Parse(ctx, c.typ, text)
	if err != nil {
		return c.fail(err)
	}
	out, err := diagram.Render(ctx, res.Model(), format, *bin)
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprint(stdout, out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Fprintln(stdout)
	}
	return 0
}

func runQuery(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c, rest, err := newCommand("query", args, stdin, stdout, stderr)
	if err != nil {
		return usageError(stderr, err)
	}
	expression := c.fs.String("e", "", "expression to evaluate (required)")
	lang := c.fs.String("lang", "jq", "expression language: jq, expr, cel")
	filter := c.fs.Bool("filter", false, "treat the expression as a predicate over each task or node")
	format := c.fs.String("format", "json", "output format: json or yaml")
	if err := c.fs.Parse(rest); err != nil {
		return 2
	}
	if *expression == "" {
		return usageError(stderr, errors.New("query: -e is required"))
	}
	text, err := c.readInput()
	if err != nil {
		return c.fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := convert.New(c.logger).Parse(ctx, c.typ, text)
	if err != nil {
		return c.fail(err)
	}
	q, err := expressions.NewQuerier()
	if err != nil {
		return c.fail(err)
	}

	var out any
	if *filter {
		out, err = q.Filter(ctx, *lang, *expression, c.typ, res.Payload())
	} else {
		out, err = q.Query(ctx, *lang, *expression, c.typ, res.Payload())
	}
	if err != nil {
		return c.fail(err)
	}
	if err := writeOutput(stdout, *format, out); err != nil {
		return c.fail(err)
	}
	return 0
}

func runSample(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		return usageError(stderr, errors.New("usage: mindflow sample <mindmap|gantt|flowchart>"))
	}
	typ, err := schema.ParseDiagramType(args[0])
	if err != nil {
		return usageError(stderr, err)
	}
	text, _ := convert.Sample(typ)
	fmt.Fprintln(stdout, text)
	return 0
}

func runTemplate(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return usageError(stderr, errors.New("usage: mindflow template <mindmap|gantt|flowchart> [flags]"))
	}
	typ, err := schema.ParseDiagramType(args[0])
	if err != nil {
		return usageError(stderr, err)
	}

	fs := flag.NewFlagSet("template", flag.ContinueOnError)
	fs.SetOutput(stderr)
	theme := fs.String("theme", "project", "mindmap theme: "+strings.Join(mindmap.TemplateThemes(), ", "))
	title := fs.String("title", "Central Topic", "mindmap root topic")
	start := fs.String("start", "", "gantt start date, YYYY-MM-DD (default: today)")
	direction := fs.String("direction", "TD", "flowchart direction: TD, TB, BT, RL, LR")
	steps := fs.String("steps", "", "flowchart steps, comma separated; names ending in ? become decisions")
	workflow := fs.String("workflow", "", "canned flowchart, overrides -steps: "+strings.Join(mermaid.WorkflowKinds(), ", "))
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	var text string
	switch typ {
	case schema.DiagramMindmap:
		text = mindmap.Template(*theme, *title)
	case schema.DiagramGantt:
		from := time.Now()
		if *start != "" {
			if from, err = time.Parse(schema.DateLayout, *start); err != nil {
				return usageError(stderr, fmt.Errorf("template: invalid -start %q: want YYYY-MM-DD", *start))
			}
		}
		text = gantt.Template(from)
	case schema.DiagramFlowchart:
		if *workflow != "" {
			text = mermaid.WorkflowTemplate(*workflow)
			break
		}
		var list []string
		if *steps != "" {
			for _, s := range strings.Split(*steps, ",") {
				if s = strings.TrimSpace(s); s != "" {
					list = append(list, s)
				}
			}
		}
		text = mermaid.Template(schema.Direction(strings.ToUpper(*direction)), list)
	}
	fmt.Fprintln(stdout, text)
	return 0
}

// writeOutput encodes v as indented JSON or as YAML. YAML goes through a JSON
// round trip so field names follow the json tags.
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q (want json or yaml)", format)
	}
}
