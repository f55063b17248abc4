package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mcservers/playersessions/internal/delivery"
	"github.com/mcservers/playersessions/internal/service"
	"github.com/redis/go-redis/v9"
)

var (
	redisURL   = flag.String("redis", "localhost:6379", "Redis URL (host:port)")
	redisPass  = flag.String("password", "", "Redis password")
	channel    = flag.String("channel", "playersessions:events", "Pub/Sub channel the relay listens on")
	hostname   = flag.String("hostname", "play.example.org", "Hostname players log in with")
	numPlayers = flag.Int("players", 100, "Number of players to log in")
	joinRate   = flag.Duration("join-rate", 10*time.Millisecond, "Time between logins (0 for maximum speed)")
	denyRate   = flag.Float64("deny-rate", 0.05, "Probability a login is denied (0.0-1.0)")
	quitRate   = flag.Float64("quit-rate", 0.1, "Probability an online player quits per tick (0.0-1.0)")
	tick       = flag.Duration("tick", 10*time.Second, "Interval between quit/rejoin rounds")
	simulate   = flag.Bool("simulate", false, "Keep players churning until interrupted")
)

type player struct {
	input  service.PlayerInput
	online bool
}

func main() {
	flag.Parse()

	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{
		Addr:     *redisURL,
		Password: *redisPass,
		DB:       0,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		fmt.Printf("Failed to connect to Redis: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Connected to Redis at %s\n", *redisURL)

	players := loginPlayers(ctx, rdb, *numPlayers)
	fmt.Printf("\n%d/%d players online on %s\n", countOnline(players), len(players), *hostname)

	if !*simulate {
		fmt.Println("\nTip: use --simulate to keep players quitting and rejoining")
		return
	}

	fmt.Printf("\nStarting churn: %.1f%% quit every %v. Press Ctrl+C to stop\n\n", *quitRate*100, *tick)
	runSimulation(ctx, rdb, players)
}

func loginPlayers(ctx context.Context, rdb *redis.Client, n int) []*player {
	players := make([]*player, 0, n)
	startTime := time.Now()

	for i := 0; i < n; i++ {
		p := &player{
			input: service.PlayerInput{
				ID:              uuid.NewString(),
				Name:            fmt.Sprintf("demo_player_%d", i+1),
				HasPlayedBefore: rand.Float64() < 0.5,
				IP:              fmt.Sprintf("192.168.1.%d", rand.Intn(254)+1),
				Port:            40000 + rand.Intn(20000),
			},
		}
		players = append(players, p)

		login(ctx, rdb, p)

		if (i+1)%50 == 0 || i+1 == n {
			fmt.Printf("   Progress: %d/%d logins published\n", i+1, n)
		}
		if *joinRate > 0 {
			time.Sleep(*joinRate)
		}
	}

	elapsed := time.Since(startTime)
	fmt.Printf("Completed in %v (%.0f logins/sec)\n", elapsed, float64(n)/elapsed.Seconds())

	return players
}

func login(ctx context.Context, rdb *redis.Client, p *player) {
	allowed := rand.Float64() >= *denyRate
	if err := publish(ctx, rdb, delivery.PlayerEvent{
		Type:     delivery.EventLogin,
		Hostname: *hostname,
		Allowed:  allowed,
		Player:   p.input,
	}); err != nil {
		fmt.Printf("Failed to publish login for %s: %v\n", p.input.Name, err)
		return
	}
	if !allowed {
		return
	}

	if err := publish(ctx, rdb, delivery.PlayerEvent{Type: delivery.EventJoin, Player: p.input}); err != nil {
		fmt.Printf("Failed to publish join for %s: %v\n", p.input.Name, err)
	}
	p.online = true
}

func quit(ctx context.Context, rdb *redis.Client, p *player) {
	if err := publish(ctx, rdb, delivery.PlayerEvent{Type: delivery.EventQuit, Player: p.input}); err != nil {
		fmt.Printf("Failed to publish quit for %s: %v\n", p.input.Name, err)
		return
	}
	p.online = false
}

func publish(ctx context.Context, rdb *redis.Client, ev delivery.PlayerEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return rdb.Publish(ctx, *channel, payload).Err()
}

func runSimulation(ctx context.Context, rdb *redis.Client, players []*player) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(*tick)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			fmt.Println("\n\nSimulation stopped")
			fmt.Printf("   Online: %d/%d\n", countOnline(players), len(players))
			return

		case <-ticker.C:
			quits, rejoins := 0, 0
			for _, p := range players {
				switch {
				case p.online && rand.Float64() < *quitRate:
					quit(ctx, rdb, p)
					quits++
				case !p.online && rand.Float64() < 0.5:
					login(ctx, rdb, p)
					rejoins++
				}
			}

			fmt.Printf("[%s] quits: %d | logins: %d | online: %d\n",
				time.Now().Format("15:04:05"), quits, rejoins, countOnline(players))
		}
	}
}

func countOnline(players []*player) int {
	n := 0
	for _, p := range players {
		if p.online {
			n++
		}
	}
	return n
}
