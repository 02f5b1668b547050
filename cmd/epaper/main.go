package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/bodgit/epaper"
	"github.com/bodgit/epaper/display"
	"github.com/bodgit/epaper/pack"
	"github.com/bodgit/epaper/profile"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v2"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	defaultDB      = "epaper.db"
	defaultProfile = "inky-impression-7"
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func newLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func newConverter(c *cli.Context, logger *slog.Logger) (*epaper.Converter, error) {
	p, err := profile.Lookup(c.String("profile"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("dither") {
		p.Dither = c.String("dither")
	}
	if c.IsSet("resize") {
		p.Resize = c.String("resize")
	}

	opts, err := epaper.OptionsFromProfile(p)
	if err != nil {
		return nil, err
	}
	if c.IsSet("workers") {
		opts.Workers = c.Int("workers")
	}

	return epaper.New(opts, logger)
}

func openDB(c *cli.Context) (*epaper.FrameDB, error) {
	return epaper.NewFrameDB(c.String("db"))
}

func outputFile(c *cli.Context, input, ext string) string {
	if out := c.String("output"); out != "" {
		return out
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}

func writeFile(file string, write func(*os.File) error) (err error) {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}

func decodeFile(file string) (*pack.Buffer, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return pack.Decode(f)
}

// loadFrame reads a frame either from the database, if arg is a frame ID,
// or from a container file.
func loadFrame(c *cli.Context, arg string) (*pack.Buffer, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return decodeFile(arg)
	}

	db, err := openDB(c)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	f, err := db.Frame(id)
	if err != nil {
		return nil, err
	}
	return f.Buffer, nil
}

var convertFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "dither",
		Usage: "dither mode, one of " + strings.Join(epaper.DitherNames(), ", "),
	},
	&cli.StringFlag{
		Name:  "resize",
		Usage: "resize mode, one of fit, fill, none",
	},
}

func main() {
	_ = godotenv.Load()

	app := cli.NewApp()

	app.Name = "epaper"
	app.Usage = "Convert images for limited-color displays"
	app.Version = "1.0.0"

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"EPAPER_DB"},
			Value:   filepath.Join(cwd, defaultDB),
			Usage:   "path to database",
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			EnvVars: []string{"EPAPER_PROFILE"},
			Value:   defaultProfile,
			Usage:   "display profile, either a preset name or a YAML file",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "convert",
			Usage:     "Convert an image into a packed frame",
			ArgsUsage: "IMAGE",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "output file, defaults to IMAGE with an .epd extension",
				},
			}, convertFlags...),
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				conv, err := newConverter(c, newLogger(c))
				if err != nil {
					return cli.Exit(err, 1)
				}

				m, err := epaper.DecodeFile(c.Args().First())
				if err != nil {
					return cli.Exit(err, 1)
				}

				b, err := conv.Convert(m)
				if err != nil {
					return cli.Exit(err, 1)
				}

				if err := writeFile(outputFile(c, c.Args().First(), ".epd"), func(f *os.File) error {
					return pack.Encode(f, b)
				}); err != nil {
					return cli.Exit(err, 1)
				}

				return nil
			},
		},
		{
			Name:      "preview",
			Usage:     "Render an image as it would appear on the display",
			ArgsUsage: "IMAGE",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "output file, defaults to IMAGE with a -preview.png suffix",
				},
			}, convertFlags...),
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				conv, err := newConverter(c, newLogger(c))
				if err != nil {
					return cli.Exit(err, 1)
				}

				m, err := epaper.DecodeFile(c.Args().First())
				if err != nil {
					return cli.Exit(err, 1)
				}

				pm, err := conv.Preview(m)
				if err != nil {
					return cli.Exit(err, 1)
				}

				if err := writeFile(outputFile(c, c.Args().First(), "-preview.png"), func(f *os.File) error {
					return png.Encode(f, pm)
				}); err != nil {
					return cli.Exit(err, 1)
				}

				return nil
			},
		},
		{
			Name:      "profiles",
			Usage:     "List the preset profiles or show one as YAML",
			ArgsUsage: "[NAME]",
			Action: func(c *cli.Context) error {
				if c.NArg() > 0 {
					p, err := profile.Lookup(c.Args().First())
					if err != nil {
						return cli.Exit(err, 1)
					}
					if err := profile.Save(os.Stdout, p); err != nil {
						return cli.Exit(err, 1)
					}
					return nil
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
				for _, name := range profile.Presets() {
					p, err := profile.Preset(name)
					if err != nil {
						return cli.Exit(err, 1)
					}
					fmt.Fprintf(w, "%s\t%dx%d\t%d colors\t%d bpp\n", name, p.Width, p.Height, len(p.Colors), p.Depth())
				}
				return w.Flush()
			},
		},
		{
			Name:      "store",
			Usage:     "Convert images and add them to the database",
			ArgsUsage: "IMAGE...",
			Flags:     convertFlags,
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				conv, err := newConverter(c, newLogger(c))
				if err != nil {
					return cli.Exit(err, 1)
				}

				db, err := openDB(c)
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer db.Close()

				for _, file := range c.Args().Slice() {
					f, err := os.Open(file)
					if err != nil {
						return cli.Exit(err, 1)
					}
					id, _, err := conv.Store(db, filepath.Base(file), f)
					f.Close()
					if err != nil {
						return cli.Exit(err, 1)
					}
					fmt.Println(id)
				}

				return nil
			},
		},
		{
			Name:      "scan",
			Usage:     "Convert every image under a directory and add them to the database",
			ArgsUsage: "DIRECTORY",
			Flags: append([]cli.Flag{
				&cli.IntFlag{
					Name:  "workers",
					Value: 10,
					Usage: "number of images to convert at once",
				},
			}, convertFlags...),
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				conv, err := newConverter(c, newLogger(c))
				if err != nil {
					return cli.Exit(err, 1)
				}

				db, err := openDB(c)
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer db.Close()

				ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
				defer stop()

				n, err := conv.Scan(ctx, db, c.Args().First())
				if err != nil {
					return cli.Exit(err, 1)
				}
				fmt.Printf("%d new frames\n", n)

				return nil
			},
		},
		{
			Name:  "frames",
			Usage: "List the frames in the database",
			Action: func(c *cli.Context) error {
				db, err := openDB(c)
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer db.Close()

				frames, err := db.Frames()
				if err != nil {
					return cli.Exit(err, 1)
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
				for _, f := range frames {
					fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\t%s\n", f.ID, f.Profile, f.Name, f.Config.Width, f.Config.Height, f.Created.Format(time.RFC3339))
				}
				return w.Flush()
			},
		},
		{
			Name:      "export",
			Usage:     "Write a stored frame to a file",
			ArgsUsage: "ID FILE",
			Action: func(c *cli.Context) error {
				if c.NArg() < 2 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				id, err := uuid.Parse(c.Args().First())
				if err != nil {
					return cli.Exit(err, 1)
				}

				db, err := openDB(c)
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer db.Close()

				f, err := db.Frame(id)
				if err != nil {
					return cli.Exit(err, 1)
				}

				if err := writeFile(c.Args().Get(1), func(w *os.File) error {
					return pack.Encode(w, f.Buffer)
				}); err != nil {
					return cli.Exit(err, 1)
				}

				return nil
			},
		},
		{
			Name:      "delete",
			Usage:     "Remove frames from the database",
			ArgsUsage: "ID...",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				db, err := openDB(c)
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer db.Close()

				for _, arg := range c.Args().Slice() {
					id, err := uuid.Parse(arg)
					if err != nil {
						return cli.Exit(err, 1)
					}
					if err := db.DeleteFrame(id); err != nil {
						return cli.Exit(err, 1)
					}
				}

				return nil
			},
		},
		{
			Name:      "display",
			Usage:     "Send a frame to a display over SPI",
			ArgsUsage: "ID|FILE",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "spi",
					Usage: "SPI port, the first one found by default",
				},
				&cli.StringFlag{
					Name:  "dc",
					Value: "GPIO22",
					Usage: "data/command pin",
				},
				&cli.IntFlag{
					Name:  "mhz",
					Value: 3,
					Usage: "SPI clock in MHz",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				logger := newLogger(c)

				b, err := loadFrame(c, c.Args().First())
				if err != nil {
					return cli.Exit(err, 1)
				}

				if _, err := host.Init(); err != nil {
					return cli.Exit(err, 1)
				}

				port, err := spireg.Open(c.String("spi"))
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer port.Close()

				dc := gpioreg.ByName(c.String("dc"))
				if dc == nil {
					return cli.Exit(fmt.Errorf("gpio pin %s not found", c.String("dc")), 1)
				}

				dev, err := display.NewSPI(port, dc, &display.Opts{
					W:            b.Width,
					H:            b.Height,
					BitsPerPixel: b.BitsPerPixel,
					Order:        b.Order,
					Frequency:    physic.Frequency(c.Int("mhz")) * physic.MegaHertz,
				})
				if err != nil {
					return cli.Exit(err, 1)
				}

				ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
				defer stop()

				logger.Info("refreshing display", "device", dev, "port", port)

				err = dev.Write(ctx, b)
				if herr := dev.Halt(); herr != nil {
					logger.Warn("cannot halt display", "error", herr)
				}
				if err != nil && !errors.Is(err, context.Canceled) {
					return cli.Exit(err, 1)
				}

				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
