package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/plonemetrics-go/internal/cli/connection"
	"github.com/yndnr/plonemetrics-go/internal/core/domain"
)

// ObjectCommand returns the object subcommand group.
func ObjectCommand() *cli.Command {
	return &cli.Command{
		Name:    "object",
		Aliases: []string{"obj"},
		Usage:   "Read and write objects of the hosted database",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print the state of an object",
				ArgsUsage: "<oid>",
				Action:    objectGet,
			},
			{
				Name:      "put",
				Usage:     "Store an object from a file or stdin",
				ArgsUsage: "<oid>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Read the state from this file instead of stdin",
					},
				},
				Action: objectPut,
			},
		},
	}
}

// PutResult is the server's answer to an object put.
type PutResult struct {
	OID  string `json:"oid" yaml:"oid"`
	Size int    `json:"size" yaml:"size"`
}

func oidArg(c *cli.Context) (domain.OID, error) {
	if c.NArg() != 1 {
		return 0, fmt.Errorf("expected exactly one <oid> argument")
	}
	return domain.ParseOID(c.Args().First())
}

func objectGet(c *cli.Context) error {
	oid, err := oidArg(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	state, err := Client(c).GetBytes(ctx, "/objects/"+oid.String())
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(state)
	return err
}

func objectPut(c *cli.Context) error {
	oid, err := oidArg(c)
	if err != nil {
		return err
	}

	var src io.Reader = os.Stdin
	if path := c.String("file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}
	state, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := Client(c).Put(ctx, "/objects/"+oid.String(), state)
	if err != nil {
		return err
	}
	var body struct {
		Data PutResult `json:"data"`
	}
	if err := connection.ParseResponse(resp, &body); err != nil {
		return err
	}
	return render(c, body.Data)
}
