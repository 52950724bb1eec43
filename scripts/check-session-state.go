package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	sessionstate "github.com/KirkDiggler/rpg-sheet/internal/repositories/session_state"
	"github.com/KirkDiggler/rpg-sheet/internal/services/snapshot"
)

// Scans a redis store for session state snapshots that can no longer be
// decoded and optionally deletes them.
func main() {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatal("Failed to parse Redis URL:", err)
	}

	client := redis.NewClient(opt)
	defer func() { _ = client.Close() }()
	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	fmt.Println("Connected to Redis:", redisURL)
	fmt.Println("Scanning session state snapshots...")

	iter := client.Scan(ctx, 0, sessionstate.RedisKeyPrefix+"*", 0).Iterator()

	var unreadable []string
	var checked int

	for iter.Next(ctx) {
		key := iter.Val()
		checked++

		value, err := client.HGet(ctx, key, "value").Bytes()
		if err != nil {
			fmt.Printf("✗ %s has no readable value: %v\n", key, err)
			unreadable = append(unreadable, key)
			continue
		}

		state, err := snapshot.Decode(value)
		if err != nil {
			fmt.Printf("✗ %s: %v\n", key, err)
			unreadable = append(unreadable, key)
			continue
		}

		fmt.Printf("✓ %s: %d/%d hit points, last updated %d\n",
			strings.TrimPrefix(key, sessionstate.RedisKeyPrefix),
			state.HitPoints.Current, state.HitPoints.Maximum, state.LastUpdated)
	}

	if err := iter.Err(); err != nil {
		log.Fatal("Error during scan:", err)
	}

	fmt.Printf("\nChecked %d snapshots, %d unreadable\n", checked, len(unreadable))
	if len(unreadable) == 0 {
		return
	}

	fmt.Print("\nDelete the unreadable snapshots? The tracker falls back to document defaults. (yes/no): ")
	var response string
	_, _ = fmt.Scanln(&response)

	if response != "yes" {
		fmt.Println("Aborted - no changes made")
		return
	}

	for _, key := range unreadable {
		if err := client.Del(ctx, key).Err(); err != nil {
			fmt.Printf("Failed to delete %s: %v\n", key, err)
		} else {
			fmt.Printf("Deleted %s\n", key)
		}
	}
}
