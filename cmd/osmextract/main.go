package main

import (
	"fmt"
	"os"

	"github.com/guspan-tanadi/osm-rawdatabyhotosm/config"
	"github.com/guspan-tanadi/osm-rawdatabyhotosm/extract"
	"github.com/guspan-tanadi/osm-rawdatabyhotosm/logging"
)

var log = logging.NewLogger("")

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println(config.Version)
		return
	}

	config.ParseExtract(os.Args[1:])
	opts := config.ExtractOptions

	if opts.Verbose {
		logging.SetMinLevel(logging.DEBUG)
	}

	data, err := os.ReadFile(opts.Boundary)
	if err != nil {
		log.Fatal("boundary file: ", err)
	}
	boundary, err := extract.BoundaryFromGeoJSON(data)
	if err != nil {
		log.Fatal("boundary file: ", err)
	}

	var customSQL string
	if opts.SQLFile != "" {
		sqlData, err := os.ReadFile(opts.SQLFile)
		if err != nil {
			log.Fatal("sql file: ", err)
		}
		customSQL = string(sqlData)
	}

	client, err := extract.NewClient(opts.URI, opts.ConfigFile)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	result, err := client.Extract(boundary, customSQL, opts.AllGeom)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("query returned %d features", len(result.Features))

	out, err := result.MarshalJSON()
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(opts.Outfile, out, 0644); err != nil {
		log.Fatal(err)
	}
	log.Debugf("wrote %s", opts.Outfile)

	logging.Shutdown()
}
