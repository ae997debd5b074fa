// Import entities from a JSON dump into a file store

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/plugfox/foxy-entity-store/internal/dao"
	"github.com/plugfox/foxy-entity-store/internal/model"
)

type dumpEntry struct {
	UID     string `json:"uid"`
	Payload string `json:"payload"`
}

func main() {
	input := flag.String("input", "entities.json", "JSON array of {\"uid\", \"payload\"} objects")
	root := flag.String("root", "./data/", "Prefix of entity file paths")
	safePaths := flag.Bool("safe-paths", false, "Reject uids that do not name a single file inside root")
	flag.Parse()

	raw, err := os.ReadFile(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read file: %v\n", err)
		os.Exit(1)
	}

	var entries []dumpEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse JSON: %v\n", err)
		os.Exit(1)
	}

	var opts []dao.Option
	if *safePaths {
		opts = append(opts, dao.WithSafePaths())
	}

	saved, failed := importEntries(context.Background(), dao.New(*root, opts...), entries)
	fmt.Printf("Imported %d entities, %d failed\n", saved, failed)

	if failed > 0 {
		os.Exit(1)
	}
}

// importEntries saves every entry, reporting failures to stderr.
func importEntries(ctx context.Context, repo dao.Repository, entries []dumpEntry) (saved int, failed int) {
	for _, entry := range entries {
		if err := repo.Save(ctx, model.NewEntity(entry.UID, entry.Payload)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save %q: %v\n", entry.UID, err)
			failed++
			continue
		}
		saved++
	}

	return saved, failed
}
