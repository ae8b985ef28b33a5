package config

import (
	"flag"
	"fmt"
	"os"
)

// Options are the command line options of the extract tool.
type Options struct {
	Verbose    bool
	URI        string
	Boundary   string
	SQLFile    string
	AllGeom    bool
	ConfigFile string
	Outfile    string
}

const defaultURI = "underpass"
const defaultOutfile = "extract.geojson"

var ExtractFlags = flag.NewFlagSet("osmextract", flag.ExitOnError)
var ExtractOptions = Options{}

func init() {
	ExtractFlags.Usage = Usage
	ExtractFlags.BoolVar(&ExtractOptions.Verbose, "verbose", false, "verbose output")
	ExtractFlags.StringVar(&ExtractOptions.URI, "uri", defaultURI, "database URI")
	ExtractFlags.StringVar(&ExtractOptions.Boundary, "boundary", "", "boundary polygon to limit the data size")
	ExtractFlags.StringVar(&ExtractOptions.SQLFile, "sql", "", "custom SQL query to execute against the database")
	ExtractFlags.BoolVar(&ExtractOptions.AllGeom, "allgeom", true, "the full geometry instead of just centroids")
	ExtractFlags.StringVar(&ExtractOptions.ConfigFile, "config", "", "the config file for the query (json or yaml)")
	ExtractFlags.StringVar(&ExtractOptions.Outfile, "outfile", defaultOutfile, "the output file")
}

func Usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [args]\n\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Make data extracts from OSM, from a local postgres database or the")
	fmt.Fprintln(os.Stderr, "remote raw-data API. A boundary polygon defines the area covered by")
	fmt.Fprintln(os.Stderr, "the extract.")
	fmt.Fprintln(os.Stderr)
	ExtractFlags.PrintDefaults()
}

func (o *Options) check() []error {
	errs := []error{}
	if o.Boundary == "" {
		errs = append(errs, fmt.Errorf("missing boundary"))
	}
	return errs
}

// ParseExtract parses args into ExtractOptions. Without a custom SQL file
// or a query config there is nothing to extract: usage is printed and the
// process exits without error.
func ParseExtract(args []string) {
	if err := ExtractFlags.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if ExtractOptions.SQLFile == "" && ExtractOptions.ConfigFile == "" {
		Usage()
		os.Exit(0)
	}
	errs := ExtractOptions.check()
	if len(errs) != 0 {
		reportErrors(errs)
		Usage()
		os.Exit(1)
	}
}

func reportErrors(errs []error) {
	fmt.Println("errors in options:")
	for _, err := range errs {
		fmt.Printf("\t%s\n", err)
	}
}
