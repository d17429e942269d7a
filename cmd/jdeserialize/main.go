package main

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/op/go-logging"
	"github.com/urfave/cli/v2"

	"github.com/TureBentzin/jdeserialize"
)

var errColor = color.New(color.FgHiRed)

func errorf(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, errColor.Sprintf("[ERROR]: "+format, args...))
}

// optionNames is the full set of long options, used to expand unambiguous
// prefix abbreviations (e.g. -noconn for -noconnect) before flag parsing.
var optionNames = []string{
	"help", "debug", "nocontent", "noclasses", "noinstances", "showarrays",
	"noconnect", "fixnames", "filter", "blockdata", "blockdatamanifest",
}

func expandAbbreviations(args []string) []string {
	expanded := make([]string, 0, len(args))
	for _, arg := range args {
		name, dashes := arg, ""
		for len(name) > 0 && name[0] == '-' {
			dashes += "-"
			name = name[1:]
		}
		if dashes == "" || name == "" {
			expanded = append(expanded, arg)
			continue
		}
		var matches []string
		for _, opt := range optionNames {
			if opt == name {
				matches = []string{opt}
				break
			}
			if strings.HasPrefix(opt, name) {
				matches = append(matches, opt)
			}
		}
		if len(matches) == 1 {
			expanded = append(expanded, dashes+matches[0])
		} else {
			expanded = append(expanded, arg)
		}
	}
	return expanded
}

func setupLogging(debug bool) {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	logging.SetFormatter(logging.MustStringFormatter(`[%{level}]: %{message}`))
	leveled := logging.AddModuleLevel(backend)
	if debug {
		leveled.SetLevel(logging.DEBUG, "jdeserialize")
	} else {
		leveled.SetLevel(logging.WARNING, "jdeserialize")
	}
	logging.SetBackend(leveled)
}

func main() {
	app := &cli.App{
		Name:      "jdeserialize",
		Usage:     "analyze Java Object Serialization streams without loading classes",
		ArgsUsage: "file1 [file2 .. fileN]",
		HideHelp:  true,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "help", Usage: "Show this list."},
			&cli.BoolFlag{Name: "debug", Usage: "Write debug info generated during parsing to stderr."},
			&cli.BoolFlag{Name: "nocontent", Usage: "Don't output descriptions of the content in the stream."},
			&cli.BoolFlag{Name: "noclasses", Usage: "Don't output class declarations."},
			&cli.BoolFlag{Name: "noinstances", Usage: "Don't output descriptions of every instance."},
			&cli.BoolFlag{Name: "showarrays", Usage: "Show array class declarations (e.g. int[])."},
			&cli.BoolFlag{Name: "noconnect", Usage: "Don't attempt to connect member classes to their enclosing classes."},
			&cli.BoolFlag{Name: "fixnames", Usage: "In class names, replace illegal Java identifier characters with legal ones."},
			&cli.StringFlag{Name: "filter", Usage: "Exclude classes matching the given regex from class output."},
			&cli.StringFlag{Name: "blockdata", Usage: "Write raw blockdata out to the specified `file`."},
			&cli.StringFlag{Name: "blockdatamanifest", Usage: "Write blockdata manifest out to the specified `file`."},
		},
		Action: run,
	}
	if err := app.Run(expandAbbreviations(os.Args)); err != nil {
		errorf("argument error: %v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Bool("help") {
		_ = cli.ShowAppHelp(c)
		return cli.Exit("", 1)
	}
	if c.Args().Len() == 0 {
		errorf("args: [options] file1 [file2 .. fileN]")
		_ = cli.ShowAppHelp(c)
		return cli.Exit("", 1)
	}
	setupLogging(c.Bool("debug"))

	var filter *regexp.Regexp
	if expr := c.String("filter"); expr != "" {
		var err error
		if filter, err = regexp.Compile(expr); err != nil {
			errorf("invalid -filter regex: %v", err)
			return cli.Exit("", 1)
		}
	}

	failed := false
	for _, path := range c.Args().Slice() {
		if err := processFile(c, path, filter); err != nil {
			errorf("error while attempting to decode file '%s': %v", path, err)
			failed = true
		}
	}
	if failed {
		return cli.Exit("", 1)
	}
	return nil
}

func processFile(c *cli.Context, path string, filter *regexp.Regexp) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	parser := jdeserialize.NewParser()
	parser.SetDebug(c.Bool("debug"))
	if err := parser.Run(bufio.NewReader(f), !c.Bool("noconnect")); err != nil {
		return err
	}

	if c.String("blockdata") != "" || c.String("blockdatamanifest") != "" {
		if err := writeBlockData(parser, c.String("blockdata"), c.String("blockdatamanifest")); err != nil {
			return err
		}
	}

	dumper := &jdeserialize.Dumper{
		Out:           os.Stdout,
		ShowContent:   !c.Bool("nocontent"),
		ShowClasses:   !c.Bool("noclasses"),
		ShowInstances: !c.Bool("noinstances"),
		ShowArrays:    c.Bool("showarrays"),
		FixNames:      c.Bool("fixnames"),
		Filter:        filter,
	}
	return dumper.Dump(parser)
}

func writeBlockData(parser *jdeserialize.Parser, dataPath, manifestPath string) error {
	var dataFile, manifestFile *os.File
	var err error
	if dataPath != "" {
		if dataFile, err = os.Create(dataPath); err != nil {
			return err
		}
		defer dataFile.Close()
	}
	if manifestPath != "" {
		if manifestFile, err = os.Create(manifestPath); err != nil {
			return err
		}
		defer manifestFile.Close()
		fmt.Fprintln(manifestFile, "# Each line in this file that doesn't begin with a '#' contains the size of")
		fmt.Fprintln(manifestFile, "# an individual blockdata block written to the stream.")
	}
	for _, content := range parser.Contents() {
		bd, ok := content.(*jdeserialize.BlockData)
		if !ok {
			continue
		}
		if manifestFile != nil {
			fmt.Fprintln(manifestFile, len(bd.Buf))
		}
		if dataFile != nil {
			if _, err := dataFile.Write(bd.Buf); err != nil {
				return err
			}
		}
	}
	return nil
}
