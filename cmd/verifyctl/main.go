package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"verify-thresholds/internal/auth"
	specs "verify-thresholds/internal/specs/domain"
	"verify-thresholds/internal/specs/infrastructure/filesystem"
	verification "verify-thresholds/internal/verification/domain"
)

var (
	errCheckFailed = errors.New("check failed")
	errLintIssues  = errors.New("lint found issues")
)

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "verifyctl: %v\n", err)
		os.Exit(1)
	}
}

type globalOptions struct {
	root     string
	packages string
}

func (o *globalOptions) loader() (*filesystem.Loader, error) {
	var packages []string
	for _, pkg := range strings.Split(o.packages, ",") {
		if pkg = strings.TrimSpace(pkg); pkg != "" {
			packages = append(packages, pkg)
		}
	}
	return filesystem.NewLoader(o.root, filesystem.WithPackages(packages...))
}

func (o *globalOptions) table() (*specs.Table, error) {
	loader, err := o.loader()
	if err != nil {
		return nil, err
	}
	return loader.LoadTable()
}

func newApp(out io.Writer) *cli.Command {
	opts := &globalOptions{}
	return &cli.Command{
		Name:   "verifyctl",
		Usage:  "Resolve and check metric threshold specs",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "root",
				Usage:       "spec root holding specs/ and metrics/",
				Value:       "data",
				Sources:     cli.EnvVars("SPEC_ROOT"),
				Destination: &opts.root,
			},
			&cli.StringFlag{
				Name:        "packages",
				Usage:       "comma separated packages to load",
				Sources:     cli.EnvVars("SPEC_PACKAGES"),
				Destination: &opts.packages,
			},
		},
		Commands: []*cli.Command{
			cmdResolve(opts, out),
			cmdCheck(opts, out),
			cmdList(opts, out),
			cmdLint(opts, out),
			cmdToken(out),
		},
	}
}

func cmdResolve(opts *globalOptions, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Print the resolved threshold of a spec",
		ArgsUsage: "<spec>",
		Action: func(ctx context.Context, c *cli.Command) error {
			name := c.Args().Get(0)
			if name == "" {
				return errors.New("resolve: spec id required")
			}
			table, err := opts.table()
			if err != nil {
				return err
			}
			spec, err := table.Lookup(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %s %s %s\n", spec.QualifiedName(), spec.Operator, formatValue(spec.Value), spec.Unit)
			return nil
		},
	}
}

func cmdCheck(opts *globalOptions, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Check a measured value against a spec; exits non-zero on failure. Put -- before negative values",
		ArgsUsage: "[--] <spec> <value> [unit]",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() < 2 {
				return errors.New("check: spec and value required")
			}
			value, err := strconv.ParseFloat(c.Args().Get(1), 64)
			if err != nil || !verification.IsFinite(value) {
				return fmt.Errorf("check: invalid value %q", c.Args().Get(1))
			}
			table, err := opts.table()
			if err != nil {
				return err
			}
			spec, err := table.Lookup(c.Args().Get(0))
			if err != nil {
				return err
			}
			if unit := c.Args().Get(2); unit != "" {
				if value, err = specs.ConvertUnit(value, unit, spec.Unit); err != nil {
					return err
				}
				if !verification.IsFinite(value) {
					return fmt.Errorf("%w: %s %s", verification.ErrNonFiniteValue, c.Args().Get(1), unit)
				}
			}
			verdict := "PASS"
			if !spec.Check(value) {
				verdict = "FAIL"
			}
			fmt.Fprintf(out, "%s %s: %s %s %s %s\n", verdict, spec.QualifiedName(),
				formatValue(value), spec.Operator, formatValue(spec.Value), spec.Unit)
			if verdict == "FAIL" {
				return errCheckFailed
			}
			return nil
		},
	}
}

func cmdList(opts *globalOptions, out io.Writer) *cli.Command {
	var tag string
	return &cli.Command{
		Name:  "list",
		Usage: "List resolved concrete specs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tag", Usage: "only specs carrying this tag", Destination: &tag},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			table, err := opts.table()
			if err != nil {
				return err
			}
			var tags []string
			if tag != "" {
				tags = []string{tag}
			}
			for _, spec := range table.Filter("", tags) {
				fmt.Fprintf(out, "%s\t%s %s %s\n", spec.QualifiedName(), spec.Operator, formatValue(spec.Value), spec.Unit)
			}
			return nil
		},
	}
}

func cmdLint(opts *globalOptions, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "lint",
		Usage: "Load the spec root and report resolution errors and metric issues",
		Action: func(ctx context.Context, c *cli.Command) error {
			loader, err := opts.loader()
			if err != nil {
				return err
			}
			table, err := loader.LoadTable()
			if err != nil {
				return err
			}
			metricSet, err := loader.LoadMetrics()
			if err != nil {
				return err
			}
			issues := table.Validate(metricSet)
			for _, issue := range issues {
				fmt.Fprintf(out, "%s: %s\n", issue.SpecID, issue.Message)
			}
			if len(issues) > 0 {
				return fmt.Errorf("%w: %d", errLintIssues, len(issues))
			}
			fmt.Fprintf(out, "ok: %d specs, %d metrics\n", table.Len(), metricSet.Len())
			return nil
		},
	}
}

func cmdToken(out io.Writer) *cli.Command {
	var (
		secret  string
		tenant  string
		role    string
		subject string
		ttl     time.Duration
	)
	return &cli.Command{
		Name:  "token",
		Usage: "Issue an API token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "secret", Usage: "HS256 signing secret", Sources: cli.EnvVars("AUTH_JWT_SECRET"), Destination: &secret},
			&cli.StringFlag{Name: "tenant", Usage: "tenant id", Value: "tenant-default", Destination: &tenant},
			&cli.StringFlag{Name: "role", Usage: "viewer, operator or admin", Value: string(auth.RoleViewer), Destination: &role},
			&cli.StringFlag{Name: "subject", Usage: "token subject", Destination: &subject},
			&cli.DurationFlag{Name: "ttl", Usage: "token lifetime", Value: time.Hour, Destination: &ttl},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if secret == "" {
				return errors.New("token: secret required")
			}
			normalized, ok := auth.NormalizeRole(role)
			if !ok {
				return fmt.Errorf("token: unknown role %q", role)
			}
			token, err := auth.IssueJWT([]byte(secret), tenant, normalized, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, token)
			return nil
		},
	}
}

func formatValue(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
