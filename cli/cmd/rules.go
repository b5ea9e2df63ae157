package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pngdoctor/cli/render"
	"github.com/justapithecus/pngdoctor/rules"
)

// rulesResponse is the rendered chunk rule table.
type rulesResponse []rules.ChunkRule

// TableSections implements render.Tabular.
func (r rulesResponse) TableSections() []render.Section {
	s := render.Section{
		Headers: []string{"TYPE", "CRITICALITY", "MULTIPLICITY", "SIZE", "ORDERING"},
	}
	for _, rule := range r {
		s.Rows = append(s.Rows, []string{
			string(rule.Type),
			string(rule.Criticality),
			string(rule.Multiplicity),
			rule.Size.String(),
			rule.OrderingString(),
		})
	}
	return []render.Section{s}
}

// RulesCommand returns the rules command.
func RulesCommand() *cli.Command {
	return &cli.Command{
		Name:   "rules",
		Usage:  "Show the PNG chunk rule table",
		Flags:  ReadOnlyFlags(),
		Action: rulesAction,
	}
}

func rulesAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for rules command", 1)
	}

	return r.Render(rulesResponse(rules.All()))
}
