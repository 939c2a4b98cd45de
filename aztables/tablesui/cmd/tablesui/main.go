// tablesui starts a local debugging UI for table data stored in
// tablestore.
//
// # Usage
//
// Start the UI server with your schema files:
//
//	tablesui --schema './schema_*.yaml' --port 8080
//
// This starts a web server at http://localhost:8080 with an in-memory
// database. To persist data, provide a database path:
//
//	tablesui --schema './schema_*.yaml' --db ./data --port 8080
//
// # Flags
//
//	-schema string
//	    	glob pattern for schema YAML files (required)
//	-db string
//	    	path to BadgerDB database (empty for in-memory)
//	-port int
//	    	HTTP port to listen on (default 8080)
//	-v
//	    	verbose request and store logging
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/acksell/nadella/aztables/tablesui"
)

func main() {
	var (
		schemaPattern = flag.String("schema", "", "glob pattern for schema YAML files (required)")
		dbPath        = flag.String("db", "", "path to BadgerDB database (empty for in-memory)")
		port          = flag.Int("port", 8080, "HTTP port to listen on")
		verbose       = flag.Bool("v", false, "verbose request and store logging")
	)
	flag.Parse()

	if *schemaPattern == "" {
		fmt.Fprintln(os.Stderr, "tablesui: --schema flag is required")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  tablesui --schema './schema_*.yaml' [--db ./data] [--port 8080]")
		os.Exit(1)
	}

	config := tablesui.ServerConfig{
		Port:          *port,
		DBPath:        *dbPath,
		SchemaPattern: *schemaPattern,
	}
	if *verbose {
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		config.Logger = &log
	}

	server, err := tablesui.NewServer(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tablesui: %v\n", err)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tablesui: %v\n", err)
		os.Exit(1)
	}
}
