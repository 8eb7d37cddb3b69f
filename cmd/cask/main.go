// Command cask is a small demonstration runner: it opens a store, writes a
// handful of keys, reads them back, and deletes one.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/iamNilotpal/cask/pkg/cask"
	"github.com/iamNilotpal/cask/pkg/errors"
	"github.com/iamNilotpal/cask/pkg/logger"
	"github.com/iamNilotpal/cask/pkg/options"
)

func main() {
	var (
		dir       string
		threshold uint64
		quiet     bool
	)

	pflag.StringVar(&dir, "dir", ".", "store directory")
	pflag.Uint64Var(&threshold, "active-threshold", options.DefaultActiveThreshold, "active file rotation threshold in bytes")
	pflag.BoolVar(&quiet, "quiet", false, "suppress structured logs")
	pflag.Parse()

	log := logger.New("cask")
	if quiet {
		log = logger.NewNop()
	}

	store, err := cask.OpenWithConfig(
		dir,
		options.WithActiveThreshold(threshold),
		options.WithLogger(log),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", dir, err)
		os.Exit(1)
	}
	defer store.Close()

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("hello%d", i)
		value := fmt.Sprintf("world %d", i)

		if err := store.Put([]byte(key), []byte(value)); err != nil {
			fmt.Fprintf(os.Stderr, "put %s: %v\n", key, err)
			os.Exit(1)
		}

		got, err := store.Get([]byte(key))
		if err != nil {
			fmt.Fprintf(os.Stderr, "get %s: %v\n", key, err)
			os.Exit(1)
		}
		fmt.Println(string(got))
	}

	if err := store.Delete([]byte("hello3")); err != nil {
		fmt.Fprintf(os.Stderr, "delete hello3: %v\n", err)
		os.Exit(1)
	}

	if _, err := store.Get([]byte("hello3")); !errors.IsNotFound(err) {
		fmt.Fprintf(os.Stderr, "hello3 still present after delete\n")
		os.Exit(1)
	}
}
