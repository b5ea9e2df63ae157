package cmd

import (
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pngdoctor/cli/render"
	"github.com/justapithecus/pngdoctor/framer"
	"github.com/justapithecus/pngdoctor/iox"
	"github.com/justapithecus/pngdoctor/ipc"
	"github.com/justapithecus/pngdoctor/rules"
	"github.com/justapithecus/pngdoctor/types"
)

// DebugCommand returns the debug command with subcommands.
// Debug commands read raw chunk streams without validating them.
func DebugCommand() *cli.Command {
	return &cli.Command{
		Name:  "debug",
		Usage: "Debug chunk framing and record streams",
		Subcommands: []*cli.Command{
			debugChunksCommand(),
			debugEncodeCommand(),
		},
	}
}

func debugChunksCommand() *cli.Command {
	return &cli.Command{
		Name:      "chunks",
		Usage:     "List the chunk records of a file without validating",
		ArgsUsage: "FILE (- reads stdin)",
		Flags: append(ReadOnlyFlags(),
			&cli.BoolFlag{
				Name:  "records",
				Usage: "Read a msgpack chunk-record stream instead of PNG bytes",
			},
		),
		Action: debugChunksAction,
	}
}

// debugChunk is one row of debug chunks output.
type debugChunk struct {
	Ordinal   int    `json:"ordinal" yaml:"ordinal"`
	Type      string `json:"type" yaml:"type"`
	Length    int64  `json:"length" yaml:"length"`
	Offset    int64  `json:"offset" yaml:"offset"`
	Critical  bool   `json:"critical" yaml:"critical"`
	Known     bool   `json:"known" yaml:"known"`
	Private   bool   `json:"private" yaml:"private"`
	SafeCopy  bool   `json:"safe_to_copy" yaml:"safe_to_copy"`
	Reserved  bool   `json:"reserved" yaml:"reserved"`
	RuleFound bool   `json:"rule" yaml:"rule"`
}

// debugChunksResponse is the rendered result of debug chunks.
type debugChunksResponse struct {
	Source string       `json:"source" yaml:"source"`
	Chunks []debugChunk `json:"chunks" yaml:"chunks"`
	Error  string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// TableSections implements render.Tabular.
func (d debugChunksResponse) TableSections() []render.Section {
	s := render.Section{
		Title:   fmt.Sprintf("%s (%d chunks)", d.Source, len(d.Chunks)),
		Headers: []string{"#", "TYPE", "LENGTH", "OFFSET", "CRITICAL", "KNOWN", "PRIVATE", "SAFE-TO-COPY"},
	}
	for _, ch := range d.Chunks {
		s.Rows = append(s.Rows, []string{
			strconv.Itoa(ch.Ordinal),
			ch.Type,
			strconv.FormatInt(ch.Length, 10),
			strconv.FormatInt(ch.Offset, 10),
			strconv.FormatBool(ch.Critical),
			strconv.FormatBool(ch.Known),
			strconv.FormatBool(ch.Private),
			strconv.FormatBool(ch.SafeCopy),
		})
	}
	sections := []render.Section{s}
	if d.Error != "" {
		sections = append(sections, render.Section{
			Title:   "Error",
			Headers: []string{"MESSAGE"},
			Rows:    [][]string{{d.Error}},
		})
	}
	return sections
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// readChunks collects the records of a PNG or record stream.
func readChunks(r io.Reader, records bool) ([]debugChunk, error) {
	var (
		seq   iter.Seq[types.ChunkRecord]
		errFn func() error
	)
	if records {
		rs := ipc.Records(r)
		seq, errFn = rs.All(), rs.Err
	} else {
		dec := framer.NewDecoder(r)
		seq, errFn = dec.Records(), dec.Err
	}

	var out []debugChunk
	for rec := range seq {
		_, ruled := rules.RuleFor(rec.Type)
		out = append(out, debugChunk{
			Ordinal:   rec.Ordinal,
			Type:      string(rec.Type),
			Length:    rec.Length,
			Offset:    rec.Offset,
			Critical:  !rec.Type.Ancillary(),
			Known:     rec.Type.Known(),
			Private:   rec.Type.Private(),
			SafeCopy:  rec.Type.SafeToCopy(),
			Reserved:  rec.Type.Reserved(),
			RuleFound: ruled,
		})
	}
	return out, errFn()
}

func debugChunksAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for debug commands
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for debug commands", 1)
	}
	if c.NArg() < 1 {
		return cli.Exit("FILE required", exitConfigError)
	}

	path := c.Args().First()
	in, err := openInput(path)
	if err != nil {
		return cli.Exit(err.Error(), exitFailed)
	}
	defer iox.DiscardClose(in)

	resp := debugChunksResponse{Source: path}
	resp.Chunks, err = readChunks(in, c.Bool("records"))
	if err != nil {
		resp.Error = err.Error()
	}
	if resp.Chunks == nil {
		resp.Chunks = []debugChunk{}
	}
	if rerr := r.Render(resp); rerr != nil {
		return rerr
	}
	if err != nil {
		return cli.Exit("", exitFailed)
	}
	return nil
}

func debugEncodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "encode",
		Usage:     "Convert a PNG file into a msgpack chunk-record stream",
		ArgsUsage: "FILE (- reads stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output path (- for stdout)",
				Value:   "-",
			},
		},
		Action: debugEncodeAction,
	}
}

func debugEncodeAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("FILE required", exitConfigError)
	}

	in, err := openInput(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitFailed)
	}
	defer iox.DiscardClose(in)

	var out io.Writer = os.Stdout
	if path := c.String("out"); path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return cli.Exit(err.Error(), exitFailed)
		}
		defer iox.DiscardClose(f)
		out = f
	}

	n, err := encodeRecords(in, out)
	if err != nil {
		return cli.Exit(fmt.Sprintf("encode failed after %d records: %v", n, err), exitFailed)
	}
	return nil
}

// encodeRecords frames every PNG chunk as a record and terminates the
// stream. It returns the number of records written.
func encodeRecords(r io.Reader, w io.Writer) (int, error) {
	dec := framer.NewDecoder(r)
	enc := ipc.NewFrameEncoder(w)

	n := 0
	for rec := range dec.Records() {
		if err := enc.WriteRecord(rec); err != nil {
			return n, err
		}
		n++
	}
	if err := dec.Err(); err != nil {
		return n, err
	}
	return n, enc.WriteEnd()
}
