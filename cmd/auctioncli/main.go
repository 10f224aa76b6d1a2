package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Zappss/ido-contracts/auctiondb"
	"github.com/urfave/cli"
)

func fatal(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "[auctioncli] %v\n", err)
	os.Exit(1)
}

func printJSON(resp interface{}) {
	jsonStr, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		fatal(fmt.Errorf("unable to encode response: %v", err))
	}

	fmt.Println(string(jsonStr))
}

// getStore opens a read-only connection to the auction database.
func getStore(ctx *cli.Context) (auctiondb.Store, error) {
	store, err := auctiondb.NewEtcdStore(
		ctx.GlobalString("network"), &auctiondb.EtcdConfig{
			Host:     ctx.GlobalString("etcdhost"),
			User:     ctx.GlobalString("etcduser"),
			Password: ctx.GlobalString("etcdpassword"),
		}, nil,
	)
	if err != nil {
		return nil, err
	}
	if err := store.Init(context.Background()); err != nil {
		return nil, err
	}

	return store, nil
}

func main() {
	app := cli.NewApp()
	app.Name = "auctioncli"
	app.Usage = "inspect the state of the auction server"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "network",
			Value: "mainnet",
			Usage: "the network namespace the data is stored " +
				"under",
		},
		cli.StringFlag{
			Name:  "etcdhost",
			Value: "localhost:2379",
			Usage: "the address of the etcd instance",
		},
		cli.StringFlag{
			Name:  "etcduser",
			Usage: "the etcd user name",
		},
		cli.StringFlag{
			Name:  "etcdpassword",
			Usage: "the etcd password",
		},
	}
	app.Commands = []cli.Command{
		listAuctionsCommand,
		listUsersCommand,
		feeParamsCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}
