package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/PuerkitoBio/goquery"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/joetifa2003/fluidgo/client"
)

// browseStep is one navigation performed by the browse command.
type browseStep struct {
	kind     string
	selector string
}

// stepFlag appends every occurrence of its flag to a list shared by all
// step flags, keeping the command line order across --click and --submit.
type stepFlag struct {
	kind  string
	steps *[]browseStep
}

func (f *stepFlag) Set(selector string) error {
	*f.steps = append(*f.steps, browseStep{kind: f.kind, selector: selector})
	return nil
}

func (f *stepFlag) String() string { return "" }

func (f *stepFlag) Get() any { return *f.steps }

func newBrowseCommand() *cli.Command {
	var steps []browseStep

	return &cli.Command{
		Name:         "browse",
		Usage:        "Loads a page with the headless client, performs navigations and prints the resulting document",
		OnUsageError: usageErrorHandler,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runBrowse(ctx, cmd, steps)
		},
		ArgsUsage: "URL",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "set", Usage: "set a field before the first step, `SELECTOR=VALUE` (repeatable)"},
			&cli.GenericFlag{Name: "click", Value: &stepFlag{kind: "click", steps: &steps}, Usage: "click the first element matching `SELECTOR` (repeatable, steps run in command line order)"},
			&cli.GenericFlag{Name: "submit", Value: &stepFlag{kind: "submit", steps: &steps}, Usage: "submit the first form matching `SELECTOR` (repeatable, steps run in command line order)"},
			&cli.IntFlag{Name: "back", Usage: "go back `N` history entries at the end"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write the document to `FILE` instead of STDOUT"},
		},
	}
}

func runBrowse(ctx context.Context, cmd *cli.Command, steps []browseStep) (err error) {
	e := envFromContext(ctx)

	target := cmd.Args().First()
	if target == "" {
		return errors.New("URL is required")
	}

	c, err := newBrowser(e.cfg.Client, target, newSlogAdapter(e.log))
	if err != nil {
		return err
	}
	if err := c.Open(ctx); err != nil {
		return fmt.Errorf("unable to open %s: %w", target, err)
	}

	if err := fill(c, cmd.StringSlice("set")); err != nil {
		return err
	}

	if err := browse(ctx, e.log, c, steps, cmd.Int("back")); err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if fname := cmd.String("out"); fname != "" {
		var f *os.File
		if f, err = os.Create(fname); err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer func() {
			err = multierr.Append(err, f.Close())
		}()
		out = f
	}

	doc, err := c.HTML()
	if err != nil {
		return fmt.Errorf("unable to render document: %w", err)
	}
	_, err = io.WriteString(out, doc+"\n")
	return err
}

func newBrowser(cfg ClientConfig, target string, logger slogAdapter) (*client.Controller, error) {
	options := []client.Option{
		client.WithLogger(logger),
		client.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		client.WithCookieName(cfg.CookieName),
		client.WithHeaderName(cfg.HeaderName),
	}
	if cfg.Sanitize {
		options = append(options, client.WithSanitizer(client.FragmentPolicy()))
	}
	return client.New(target, options...)
}

// fill applies SELECTOR=VALUE assignments to the current document.
func fill(c *client.Controller, assignments []string) error {
	for _, assignment := range assignments {
		selector, value, ok := splitAssignment(assignment)
		if !ok || selector == "" {
			return fmt.Errorf("malformed assignment %q, expected SELECTOR=VALUE", assignment)
		}

		var matched int
		c.View(func(doc *client.Document) {
			sel := doc.Find(selector)
			matched = sel.Length()
			sel.Each(func(_ int, s *goquery.Selection) {
				if goquery.NodeName(s) == "textarea" {
					s.SetText(value)
					return
				}
				s.SetAttr("value", value)
			})
		})
		if matched == 0 {
			return fmt.Errorf("no element matches %q", selector)
		}
	}
	return nil
}

// splitAssignment cuts SELECTOR=VALUE at the first '=' that is outside
// attribute brackets and quotes, so "input[name=title]=x" keeps its selector.
func splitAssignment(assignment string) (selector, value string, ok bool) {
	var (
		depth int
		quote rune
	)
	for i, r := range assignment {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '[':
			depth++
		case r == ']' && depth > 0:
			depth--
		case r == '=' && depth == 0:
			return assignment[:i], assignment[i+1:], true
		}
	}
	return assignment, "", false
}

func browse(ctx context.Context, log *zap.Logger, c *client.Controller, steps []browseStep, back int) error {
	for _, step := range steps {
		var err error
		switch step.kind {
		case "click":
			err = c.ClickSelector(ctx, step.selector)
		case "submit":
			err = c.SubmitSelector(ctx, step.selector)
		default:
			err = fmt.Errorf("unknown step %q", step.kind)
		}
		if err != nil {
			return fmt.Errorf("unable to %s %q: %w", step.kind, step.selector, err)
		}
		log.Info("Navigated", zap.String("step", step.kind), zap.String("selector", step.selector), zap.Stringer("location", c.Location()))
	}

	for range back {
		if err := c.Back(ctx); err != nil {
			return fmt.Errorf("unable to go back: %w", err)
		}
		log.Info("Went back", zap.Stringer("location", c.Location()))
	}
	return nil
}
