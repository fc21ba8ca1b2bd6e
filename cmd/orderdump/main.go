// Command orderdump prints one stored order as a protojson Order message.
//
//	orderdump [-c config.json] [-dialect postgres|sqlite] -d <dsn> -id <n> [-url]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"google.golang.org/protobuf/encoding/protojson"

	"github.com/dmitrijs2005/ormpb/internal/config"
	"github.com/dmitrijs2005/ormpb/internal/flagx"
	"github.com/dmitrijs2005/ormpb/internal/logging"
	"github.com/dmitrijs2005/ormpb/internal/shop"
	"github.com/dmitrijs2005/ormpb/mapper"
	"github.com/dmitrijs2005/ormpb/serializer"
	"github.com/dmitrijs2005/ormpb/store/sqlstore"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("orderdump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	id := fs.Int64("id", 0, "order id")
	if err := flagx.Parse(fs, args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("-id is required")
	}

	logger := logging.New(stderr, cfg.LogLevel)

	dialect, err := cfg.SQLDialect()
	if err != nil {
		return err
	}
	db, err := sqlstore.Open(ctx, dialect, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlstore.Migrate(ctx, db, dialect, shop.Migrations()); err != nil {
		return err
	}

	resolver, err := cfg.FileResolver(ctx)
	if err != nil {
		return err
	}
	var sopts []serializer.Option
	if resolver != nil {
		sopts = append(sopts, serializer.WithFileURLs(resolver))
	}

	models := shop.NewRegistry()
	st := sqlstore.New(db, models, dialect)
	m := mapper.New(models, serializer.NewRegistry(sopts...), st, mapper.WithLogger(logger))

	meta, err := models.Meta(&shop.Order{})
	if err != nil {
		return err
	}
	order, err := st.Get(ctx, meta, *id)
	if err != nil {
		return err
	}
	msg, err := m.ToMessage(ctx, order, nil)
	if err != nil {
		return err
	}

	out, err := protojson.MarshalOptions{Multiline: true, UseProtoNames: true}.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode order %d: %w", *id, err)
	}
	logger.Debug(ctx, "order dumped", "id", *id, "bytes", len(out))
	_, err = fmt.Fprintf(stdout, "%s\n", out)
	return err
}
