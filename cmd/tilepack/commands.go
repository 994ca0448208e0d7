package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/0xReLogic/tilepack/internal/container"
	"github.com/0xReLogic/tilepack/internal/data/bitmap"
	"github.com/0xReLogic/tilepack/internal/storage"
)

var compressCommand = &cli.Command{
	Name:      "compress",
	Usage:     "Compress a file into a container",
	ArgsUsage: "IN OUT",
	Action: func(c *cli.Context) error {
		in, out, err := twoArgs(c)
		if err != nil {
			return err
		}
		cfg, opts, err := options(c)
		if err != nil {
			return err
		}

		start := time.Now()
		res, err := storage.CompressFile(c.Context, in, out, opts, cfg.Workers)
		if err != nil {
			return err
		}

		h := res.Header()
		opts.Logger.WithFields(logrus.Fields{
			"tiles":   h.TileCount(),
			"in":      h.UncompressedSize(),
			"out":     len(res.Bytes),
			"elapsed": time.Since(start).Round(time.Millisecond),
		}).Infof("compressed %s to %s", in, out)
		return nil
	},
}

var decompressCommand = &cli.Command{
	Name:      "decompress",
	Usage:     "Restore the original file from a container",
	ArgsUsage: "IN OUT",
	Action: func(c *cli.Context) error {
		in, out, err := twoArgs(c)
		if err != nil {
			return err
		}
		_, opts, err := options(c)
		if err != nil {
			return err
		}

		n, err := storage.DecompressFile(in, out, opts)
		if err != nil {
			return err
		}
		opts.Logger.WithField("bytes", n).Infof("decompressed %s to %s", in, out)
		return nil
	},
}

var inspectCommand = &cli.Command{
	Name:      "inspect",
	Usage:     "Print the header and size table of a container",
	ArgsUsage: "IN",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "tiles", Usage: "List every tile"},
		&cli.BoolFlag{Name: "json", Usage: "Print the index as JSON"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("inspect takes one argument", 2)
		}
		_, opts, err := options(c)
		if err != nil {
			return err
		}

		f, err := os.Open(c.Args().First())
		if err != nil {
			return errors.Wrap(err, "failed to open container")
		}
		defer f.Close()

		idx, err := container.ReadIndex(bufio.NewReader(f), opts.TileSize)
		if err != nil {
			return err
		}

		if c.Bool("json") {
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(idx.Summary())
		}
		return printIndex(c.App.Writer, idx, c.Bool("tiles"))
	},
}

var verifyCommand = &cli.Command{
	Name:      "verify",
	Usage:     "Decode every tile and report damaged ones",
	ArgsUsage: "IN",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "damaged-out", Usage: "Write the damaged tile set as a roaring bitmap to `FILE`"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("verify takes one argument", 2)
		}
		_, opts, err := options(c)
		if err != nil {
			return err
		}

		r, err := storage.OpenReader(c.Args().First(), opts)
		if err != nil {
			return err
		}
		defer r.Close()

		report, err := r.Verify()
		if err != nil {
			return err
		}
		if path := c.String("damaged-out"); path != "" {
			set, err := bitmap.ToBytes(report.Damaged)
			if err != nil {
				return err
			}
			if err := storage.WriteFile(path, set); err != nil {
				return err
			}
		}
		if !report.OK() {
			return cli.Exit(fmt.Sprintf("%d of %d tiles damaged: %v",
				report.Damaged.GetCardinality(), report.TileCount, bitmap.Indices(report.Damaged)), 1)
		}

		fmt.Fprintf(c.App.Writer, "ok: %d tiles, %d bytes\n", report.TileCount, report.UncompressedSize)
		return nil
	},
}

var catCommand = &cli.Command{
	Name:      "cat",
	Usage:     "Write a byte range of the original file to stdout",
	ArgsUsage: "IN",
	Flags: []cli.Flag{
		&cli.Int64Flag{Name: "offset", Usage: "Start of the range"},
		&cli.Int64Flag{Name: "length", Value: -1, Usage: "Length of the range, -1 for the rest"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("cat takes one argument", 2)
		}
		_, opts, err := options(c)
		if err != nil {
			return err
		}

		r, err := storage.OpenReader(c.Args().First(), opts)
		if err != nil {
			return err
		}
		defer r.Close()

		offset, length := c.Int64("offset"), c.Int64("length")
		if offset < 0 || offset > r.Size() {
			return cli.Exit(fmt.Sprintf("offset %d outside [0, %d]", offset, r.Size()), 2)
		}
		if length < 0 || offset+length > r.Size() {
			length = r.Size() - offset
		}

		_, err = io.Copy(c.App.Writer, io.NewSectionReader(r, offset, length))
		return err
	},
}

func twoArgs(c *cli.Context) (string, string, error) {
	if c.NArg() != 2 {
		return "", "", cli.Exit(c.Command.Name+" takes two arguments: IN OUT", 2)
	}
	return c.Args().Get(0), c.Args().Get(1), nil
}

func printIndex(w io.Writer, idx *container.Index, tiles bool) error {
	h := idx.Header
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "tile size:\t%d\n", h.TileSize())
	fmt.Fprintf(tw, "tiles:\t%d (%d full, last %d bytes)\n", h.TileCount(), h.FullTiles(), h.LastTileLen())
	fmt.Fprintf(tw, "uncompressed:\t%d\n", idx.UncompressedSize())
	fmt.Fprintf(tw, "compressed:\t%d\n", idx.StreamSize())
	if size := idx.UncompressedSize(); size > 0 {
		fmt.Fprintf(tw, "ratio:\t%.3f\n", float64(idx.StreamSize())/float64(size))
	}

	if tiles {
		fmt.Fprintln(tw, "\nindex\toffset\tsize\tdata offset\tdata size")
		for _, t := range idx.Tiles {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\n", t.Index, t.Offset, t.CompressedSize, t.UncompressedOffset, t.UncompressedSize)
		}
	}
	return tw.Flush()
}
