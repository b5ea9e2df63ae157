package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pngdoctor/cli/render"
	"github.com/justapithecus/pngdoctor/cli/tui"
	"github.com/justapithecus/pngdoctor/doctor"
	"github.com/justapithecus/pngdoctor/framer"
	"github.com/justapithecus/pngdoctor/policy"
	"github.com/justapithecus/pngdoctor/validator"
)

// InspectCommand returns the inspect command.
// Inspect returns the full report for a single file without persisting it.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect one PNG file and show its full report",
		ArgsUsage: "FILE (- reads stdin)",
		Flags: append(TUIReadOnlyFlags(),
			&cli.BoolFlag{
				Name:  "fail-fast",
				Usage: "Stop at the first violation",
			},
			&cli.StringFlag{
				Name:  "policy",
				Usage: "Decode policy: strict, lenient, noop",
				Value: "strict",
			},
			&cli.BoolFlag{
				Name:  "records",
				Usage: "Read a msgpack chunk-record stream instead of PNG bytes",
			},
			&cli.Int64Flag{
				Name:  "max-file-size",
				Usage: "Maximum bytes read",
				Value: framer.DefaultMaxFileSize,
			},
		),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("FILE required", exitConfigError)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	pol, err := policy.New(c.String("policy"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid --policy: %v", err), exitConfigError)
	}
	mode := validator.CollectAll
	if c.Bool("fail-fast") {
		mode = validator.FailFast
	}

	insp := doctor.New(doctor.Config{
		Mode:        mode,
		Policy:      pol,
		MaxFileSize: c.Int64("max-file-size"),
		Records:     c.Bool("records"),
	})
	report, err := insp.InspectFile(context.Background(), c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitFailed)
	}

	if c.Bool("tui") {
		if err := r.RenderTUI(tui.ViewInspectReport, report); err != nil {
			return err
		}
	} else if err := r.Render(inspectView{report}); err != nil {
		return err
	}

	return cli.Exit("", exitCodeFor(&doctor.RunResult{Reports: []*doctor.Report{report}}, nil))
}

// inspectView renders a report as sections in table mode and as the
// plain report otherwise.
type inspectView struct {
	*doctor.Report
}

// MarshalJSON keeps the report's own JSON shape.
func (v inspectView) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Report)
}

// MarshalYAML keeps the report's own YAML shape.
func (v inspectView) MarshalYAML() (any, error) {
	return v.Report, nil
}

// TableSections implements render.Tabular.
func (v inspectView) TableSections() []render.Section {
	rep := v.Report
	decision := "-"
	if rep.Decision != nil {
		decision = rep.Decision.Action
		if rep.Decision.Reason != "" {
			decision += ": " + rep.Decision.Reason
		}
	}

	fields := render.Section{
		Headers: []string{"FIELD", "VALUE"},
		Rows: [][]string{
			{"Pass", rep.PassID},
			{"Source", rep.Source},
			{"Outcome", string(rep.Outcome)},
			{"Decision", decision},
			{"Mode", rep.Mode},
			{"Policy", rep.Policy},
			{"Bytes", strconv.FormatInt(rep.BytesRead, 10)},
			{"Duration", fmt.Sprintf("%dms", rep.DurationMs)},
		},
	}
	if rep.FramingError != "" {
		fields.Rows = append(fields.Rows, []string{"Framing Error", rep.FramingError})
	}

	chunks := render.Section{
		Title:   fmt.Sprintf("Chunks (%d)", len(rep.Chunks)),
		Headers: []string{"#", "TYPE", "LENGTH", "OFFSET"},
	}
	for _, ch := range rep.Chunks {
		chunks.Rows = append(chunks.Rows, []string{
			strconv.Itoa(ch.Ordinal),
			ch.Type,
			strconv.FormatInt(ch.Length, 10),
			strconv.FormatInt(ch.Offset, 10),
		})
	}

	sections := []render.Section{fields, chunks}
	if len(rep.Violations) > 0 {
		violations := render.Section{
			Title:   fmt.Sprintf("Violations (%d)", len(rep.Violations)),
			Headers: []string{"#", "CATEGORY", "CHUNK", "CRITICALITY", "BLOCKING", "MESSAGE"},
		}
		for _, vi := range rep.Violations {
			violations.Rows = append(violations.Rows, []string{
				strconv.Itoa(vi.Ordinal),
				vi.Category,
				vi.ChunkType,
				vi.Criticality,
				strconv.FormatBool(vi.Blocking),
				vi.Message,
			})
		}
		sections = append(sections, violations)
	}
	return sections
}
