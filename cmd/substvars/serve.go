package main

import (
	"context"

	"github.com/animalet/substvars/pkg/config"
	"github.com/animalet/substvars/pkg/properties"
	"github.com/animalet/substvars/pkg/server"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

const defaultAddress = ":8080"

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "serve the resolution API over HTTP",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "config",
			Aliases:  []string{"c"},
			Usage:    "path to the YAML configuration file",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "address",
			Aliases: []string{"a"},
			Usage:   "listen address, overrides server.address",
		},
		&cli.StringSliceFlag{
			Name:    "define",
			Aliases: []string{"D"},
			Usage:   "set a system property, as key=value",
		},
		&cli.IntFlag{
			Name:  "max-depth",
			Usage: "fail requests whose resolution nests deeper than this, overrides server.max_depth",
			Value: config.DefaultMaxDepth,
		},
	},
	Action: func(_ context.Context, cmd *cli.Command) error {
		maxDepth := 0
		if cmd.IsSet("max-depth") {
			maxDepth = cmd.Int("max-depth")
		}
		srv, err := newServer(cmd.String("config"), cmd.String("address"), maxDepth, cmd.StringSlice("define"))
		if err != nil {
			return err
		}
		return srv.StartAndWaitForSignal()
	},
}

var typesCommand = &cli.Command{
	Name:  "types",
	Usage: "list the built-in property source types",
	Action: func(_ context.Context, cmd *cli.Command) error {
		for _, t := range properties.Builtins().Types() {
			if _, err := cmd.Root().Writer.Write([]byte(t + "\n")); err != nil {
				return err
			}
		}
		return nil
	},
}

// newServer wires the configured sources into a server that closes them on shutdown. The server
// section is expanded after the system properties and defines are set, so it may reference them.
// A positive maxDepth overrides the configured one.
func newServer(file, address string, maxDepth int, defines []string) (*server.Server, error) {
	c, err := loadChain(file, defines)
	if err != nil {
		return nil, err
	}

	serverCfg := config.ServerConfig{Address: defaultAddress}
	resolved, err := c.config.ResolveServer()
	if err != nil {
		c.close()
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	if resolved != nil {
		serverCfg = *resolved
	}
	if address != "" {
		serverCfg.Address = address
	}
	if maxDepth > 0 {
		serverCfg.MaxDepth = maxDepth
	}

	srv, err := server.NewServer(serverCfg, properties.NewComposite(c.primary, c.secondary))
	if err != nil {
		c.close()
		return nil, errors.Wrap(err, "failed to create server")
	}
	srv.AddShutdownHook(func() error {
		c.close()
		return nil
	})
	return srv, nil
}
