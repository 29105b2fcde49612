package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/casebook"
)

func main() {
	count := flag.Int("count", 1000, "Number of records to generate")
	adapterName := flag.String("adapter", "fs", "Storage adapter to measure: fs or sqlite")
	keep := flag.Bool("keep", false, "Keep the benchmark vault after running")
	flag.Parse()

	benchDir, err := os.MkdirTemp("", "casebook_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	open := func() *casebook.App {
		app, err := casebook.New(ctx, benchDir,
			casebook.WithLogger(logger),
			casebook.WithAdapter(*adapterName),
			casebook.WithDevSafety(false),
		)
		if err != nil {
			panic(err)
		}
		return app
	}

	// Run 1: every create and update is one repository write.
	fmt.Printf("Writing %d records (%s) in %s...\n", *count, *adapterName, benchDir)
	app := open()
	startWrite := time.Now()
	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < *count; i++ {
		rec, err := app.Store.Create(ctx)
		if err != nil {
			panic(err)
		}
		rec.Title = fmt.Sprintf("Case %d", i)
		rec.OccurredAt = base.Add(-time.Duration(i) * time.Hour)
		rec.Solved = i%3 == 0
		if err := app.Store.Update(ctx, rec); err != nil {
			panic(err)
		}
	}
	write := time.Since(startWrite)
	app.Close()

	// Run 2: a fresh process opening the vault loads everything.
	startLoad := time.Now()
	app = open()
	load := time.Since(startLoad)
	loaded := app.Store.Len()

	// Run 3: one edit session round trip on the loaded vault.
	startEdit := time.Now()
	sess, err := app.OpenSession(ctx, app.Store.List()[0].ID)
	if err != nil {
		panic(err)
	}
	if err := sess.SetSolved(true); err != nil {
		panic(err)
	}
	if err := sess.Close(ctx); err != nil {
		panic(err)
	}
	edit := time.Since(startEdit)
	app.Close()

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d records, %s):\n", *count, *adapterName)
	fmt.Printf("  Write: %v (%v/op)\n", write, write/time.Duration(max(1, 2**count)))
	fmt.Printf("  Load:  %v (Items: %d)\n", load, loaded)
	fmt.Printf("  Edit:  %v\n", edit)
	fmt.Printf("--------------------------------------------------\n")
}
