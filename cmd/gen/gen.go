package main

import (
	"context"
	"flag"
	"log"

	"github.com/maxshaw/sqlrepo/gen"
)

func main() {
	config := flag.String("config", "sqlrepo.yaml", "generator configuration file")
	flag.Parse()

	cfg, err := gen.LoadConfig(*config)
	if err != nil {
		log.Fatal(err)
	}

	if _, err := gen.Gen(context.Background(), cfg); err != nil {
		log.Fatal(err)
	}
}
