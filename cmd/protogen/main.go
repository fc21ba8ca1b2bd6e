// Command protogen prints the proto3 schema of the shop entities.
//
//	protogen [-c config.json] [-package p] [-go-package gp]
package main

import (
	"io"
	"log"
	"os"

	"github.com/dmitrijs2005/ormpb/internal/config"
	"github.com/dmitrijs2005/ormpb/internal/shop"
	"github.com/dmitrijs2005/ormpb/schema"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}

func run(args []string, w io.Writer) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	var opts []schema.Option
	if cfg.ProtoPackage != "" {
		opts = append(opts, schema.WithPackage(cfg.ProtoPackage))
	}
	if cfg.GoPackage != "" {
		opts = append(opts, schema.WithGoPackage(cfg.GoPackage))
	}

	text, err := schema.New(shop.NewRegistry(), opts...).GenerateAll()
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, text)
	return err
}
