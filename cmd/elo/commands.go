package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"elo-sync/internal/app"
	"elo-sync/internal/config"
	"elo-sync/internal/domain/user"
	"elo-sync/internal/usecase/rating"

	"github.com/urfave/cli/v2"
)

const containerKey = "container"

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "elo",
		Usage:     "read and change the shared ELO rating",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend", Usage: "memory, redis, postgres, sqlite or nats (overrides ELO_BACKEND)"},
			&cli.StringFlag{Name: "key", Usage: "slot key (overrides ELO_STORE_KEY)"},
			&cli.BoolFlag{Name: "json", Usage: "print JSON instead of text"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log backend activity to stderr"},
		},
		Before: openContainer,
		After:  closeContainer,
		Commands: []*cli.Command{
			{Name: "get", Usage: "print the rating with its tier", Action: cmdGet},
			{Name: "set", Usage: "set the rating", ArgsUsage: "N", Action: cmdSet},
			{Name: "add", Usage: "add a (possibly negative) delta", ArgsUsage: "D", Action: cmdAdd},
			{Name: "refresh", Usage: "re-read the slot and print it", Action: cmdRefresh},
			{Name: "watch", Usage: "print every change until interrupted", Action: cmdWatch},
			{Name: "tiers", Usage: "list the active rank tiers", Action: cmdTiers},
			{
				Name:   "login",
				Usage:  "store a user record",
				Action: cmdLogin,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "avatar"},
					&cli.StringFlag{Name: "avatar-image"},
					&cli.IntFlag{Name: "rating", Value: -1, Usage: "initial rating, none when negative"},
				},
			},
			{Name: "logout", Usage: "remove the stored user", Action: cmdLogout},
		},
	}
}

func openContainer(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if b := c.String("backend"); b != "" {
		cfg.Store.Backend = b
	}
	if k := c.String("key"); k != "" {
		cfg.Store.Key = k
	}

	logger := log.New(io.Discard, "", 0)
	if c.Bool("verbose") {
		logger = log.New(c.App.ErrWriter, "elo ", log.LstdFlags)
	}
	ctr, err := app.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	c.App.Metadata = map[string]any{containerKey: ctr}
	return nil
}

func closeContainer(c *cli.Context) error {
	if ctr := container(c); ctr != nil {
		return ctr.Close()
	}
	return nil
}

func container(c *cli.Context) *app.Container {
	ctr, _ := c.App.Metadata[containerKey].(*app.Container)
	return ctr
}

func intArg(c *cli.Context, name string) (int, error) {
	if c.NArg() != 1 {
		return 0, fmt.Errorf("%s: expected exactly one argument", c.Command.Name)
	}
	n, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return 0, fmt.Errorf("%s: %s must be an integer", c.Command.Name, name)
	}
	return n, nil
}

func printRating(c *cli.Context, r int) error {
	ctr := container(c)
	v := ctr.Views.ForRating(c.Context, r)
	if c.Bool("json") {
		return json.NewEncoder(c.App.Writer).Encode(v)
	}
	_, err := fmt.Fprintf(c.App.Writer, "%s  %s  %.0f%%\n", v.RatingLabel, v.Rank.Name, v.ProgressPercent)
	return err
}

func cmdGet(c *cli.Context) error {
	return printRating(c, container(c).Store.Rating(c.Context))
}

func cmdSet(c *cli.Context) error {
	n, err := intArg(c, "N")
	if err != nil {
		return err
	}
	return printRating(c, container(c).Store.SetRating(c.Context, n))
}

func cmdAdd(c *cli.Context) error {
	d, err := intArg(c, "D")
	if err != nil {
		return err
	}
	return printRating(c, container(c).Store.AddDelta(c.Context, d))
}

func cmdRefresh(c *cli.Context) error {
	return printRating(c, container(c).Store.Refresh(c.Context))
}

func cmdWatch(c *cli.Context) error {
	ctr := container(c)
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cancel := ctr.Store.OnChange(func(ch rating.Change) {
		if c.Bool("json") {
			_ = json.NewEncoder(c.App.Writer).Encode(ch)
			return
		}
		v := ctr.Views.ForRating(ctx, ch.Rating)
		fmt.Fprintf(c.App.Writer, "%-7s %s  %s\n", ch.Source, v.RatingLabel, v.Rank.Name)
	})
	defer cancel()

	if err := printRating(c, ctr.Store.Rating(ctx)); err != nil {
		return err
	}
	return ctr.Store.Watch(ctx)
}

func cmdTiers(c *cli.Context) error {
	tiers := container(c).Table.Tiers()
	if c.Bool("json") {
		return json.NewEncoder(c.App.Writer).Encode(tiers)
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tMIN\tMAX")
	for _, t := range tiers {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", t.Key, t.Name, t.Min, t.Max)
	}
	return tw.Flush()
}

func cmdLogin(c *cli.Context) error {
	rec := user.NewRecord(c.String("name"), c.String("avatar"), c.String("avatar-image"))
	if r := c.Int("rating"); r >= 0 {
		rec.SetRating(r)
	}
	ctr := container(c)
	if err := ctr.Store.SaveUser(c.Context, rec); err != nil {
		return err
	}
	return printRating(c, ctr.Store.Rating(c.Context))
}

func cmdLogout(c *cli.Context) error {
	ctr := container(c)
	if err := ctr.Store.ClearUser(c.Context); err != nil {
		return err
	}
	return printRating(c, ctr.Store.Rating(c.Context))
}
