// Command scheduler adds tracks or an album to a user's library and schedules
// enrichment for every track that is not indexed yet.
//
// Usage:
//
//	scheduler -file album.json [-album] [-user USER_ID]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"go.temporal.io/sdk/client"

	"github.com/algojuke/discovery/internal/config"
	"github.com/algojuke/discovery/internal/wiring"
	"github.com/algojuke/discovery/pkg/ingestion"
	"github.com/algojuke/discovery/pkg/library"
)

func main() {
	file := flag.String("file", "", "JSON file holding one track, or an album with -album")
	isAlbum := flag.Bool("album", false, "treat the file as an album with a tracks array")
	userID := flag.String("user", "", "also save the tracks to this user's library")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(*file, *isAlbum, *userID); err != nil {
		log.Fatalf("scheduler: %v", err)
	}
}

func run(path string, isAlbum bool, userID string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	album, err := decodeInput(data, isAlbum)
	if err != nil {
		return err
	}

	ctx := context.Background()
	db, store, err := wiring.OpenIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	if userID != "" {
		isrcs := make([]string, 0, len(album.Tracks))
		for _, t := range album.Tracks {
			isrcs = append(isrcs, t.ISRC)
		}
		if err := library.NewPostgresStore(db.Pool()).AddTracks(ctx, userID, isrcs); err != nil {
			log.Printf("scheduler: library update failed, scheduling anyway: %v", err)
		}
	}

	publisher := ingestion.NewTemporalPublisher(c, cfg.Temporal.TaskQueue, cfg.Temporal.WorkflowName)
	scheduler := ingestion.NewScheduler(store, publisher)

	var out any
	if isAlbum {
		out = scheduler.ScheduleAlbumTracks(ctx, album)
	} else {
		out = scheduler.ScheduleTrack(ctx, album.Tracks[0])
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// decodeInput reads a single track or an album. A single track is returned
// as a one-track album.
func decodeInput(data []byte, isAlbum bool) (ingestion.Album, error) {
	if isAlbum {
		var a ingestion.Album
		if err := json.Unmarshal(data, &a); err != nil {
			return ingestion.Album{}, fmt.Errorf("decode album: %w", err)
		}
		return a, nil
	}
	var t ingestion.Track
	if err := json.Unmarshal(data, &t); err != nil {
		return ingestion.Album{}, fmt.Errorf("decode track: %w", err)
	}
	return ingestion.Album{Title: t.Album, Artist: t.Artist, Tracks: []ingestion.Track{t}}, nil
}
