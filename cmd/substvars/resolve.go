package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/animalet/substvars/pkg/config"
	"github.com/animalet/substvars/pkg/properties"
	"github.com/animalet/substvars/pkg/subst"
	"github.com/animalet/substvars/pkg/sysprops"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

var errUndefined = errors.New("undefined properties remain")

var resolveCommand = &cli.Command{
	Name:      "resolve",
	Usage:     "resolve each argument, or each line of standard input when there are none",
	ArgsUsage: "[value...]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to the YAML configuration file",
		},
		&cli.StringSliceFlag{
			Name:    "define",
			Aliases: []string{"D"},
			Usage:   "set a system property, as key=value",
		},
		&cli.BoolFlag{
			Name:  "strict",
			Usage: "fail when a placeholder could not be resolved",
		},
		&cli.IntFlag{
			Name:  "max-depth",
			Usage: "fail when resolution nests deeper than this, 0 for no limit",
		},
	},
	Action: resolveAction,
}

func resolveAction(_ context.Context, cmd *cli.Command) error {
	sources, err := loadChain(cmd.String("config"), cmd.StringSlice("define"))
	if err != nil {
		return err
	}
	defer sources.close()

	resolver := subst.New(subst.WithMaxDepth(cmd.Int("max-depth")))
	out := cmd.Root().Writer

	var undefined []string
	resolveOne := func(value string) error {
		res, err := resolver.ResolveDetailed(value, sources.primary, sources.secondary)
		if err != nil {
			return err
		}
		undefined = append(undefined, res.Undefined...)
		_, err = fmt.Fprintln(out, res.Value)
		return err
	}

	if cmd.Args().Len() > 0 {
		for _, value := range cmd.Args().Slice() {
			if err := resolveOne(value); err != nil {
				return err
			}
		}
	} else {
		scanner := bufio.NewScanner(cmd.Root().Reader)
		for scanner.Scan() {
			if err := resolveOne(scanner.Text()); err != nil {
				return err
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrap(err, "error reading standard input")
		}
	}

	if cmd.Bool("strict") && len(undefined) > 0 {
		return errors.Wrapf(errUndefined, "%s", strings.Join(undefined, ", "))
	}
	return nil
}

// chain holds the property sources built from a configuration file.
type chain struct {
	config    *config.Config
	primary   *properties.Composite
	secondary *properties.Composite
}

func (c *chain) close() {
	for _, composite := range []*properties.Composite{c.primary, c.secondary} {
		if err := composite.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close property sources")
		}
	}
}

// loadChain reads file when set, seeds the system properties from it and from defines, and then
// builds the primary and secondary sources, which may therefore reference both.
func loadChain(file string, defines []string) (*chain, error) {
	c := &chain{
		config:    &config.Config{},
		primary:   properties.NewComposite(),
		secondary: properties.NewComposite(),
	}

	if file != "" {
		cfg, err := config.NewConfig(file)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load configuration")
		}
		if err = cfg.ApplySystemProperties(sysprops.Default); err != nil {
			return nil, err
		}
		c.config = cfg
		log.Debug().Str("file", file).Msg("Configuration loaded successfully")
	}

	props, err := parseDefines(defines)
	if err != nil {
		return nil, err
	}
	if err = sysprops.SetAll(props); err != nil {
		return nil, err
	}

	factory := properties.Builtins()
	if c.primary, err = properties.Build(c.config.Primary, factory); err != nil {
		return nil, errors.Wrap(err, "failed to build primary sources")
	}
	if c.secondary, err = properties.Build(c.config.Secondary, factory); err != nil {
		if closeErr := c.primary.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close primary sources")
		}
		return nil, errors.Wrap(err, "failed to build secondary sources")
	}
	return c, nil
}

func parseDefines(defines []string) (map[string]string, error) {
	props := make(map[string]string, len(defines))
	for _, d := range defines {
		key, value, ok := strings.Cut(d, "=")
		if !ok || key == "" {
			return nil, errors.Errorf("invalid definition %q, expected key=value", d)
		}
		props[key] = value
	}
	return props, nil
}
