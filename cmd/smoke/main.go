// Command smoke checks the edge's dependencies: the shared redis tier, the
// resizer metadata endpoint and the invalidation topic.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"

	"github.com/mohammed-shakir/akamai-compat-edge/internal/invalidation"
)

func getenv(key, def string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return def
}

func testRedis(ctx context.Context, addr string) error {
	fmt.Println("Redis test")
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
	})
	defer func() { _ = client.Close() }()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	if err := client.Set(ctx, "dim:smoke", "ok", 30*time.Second).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	val, err := client.Get(ctx, "dim:smoke").Result()
	if err != nil {
		return fmt.Errorf("redis get: %w", err)
	}
	fmt.Println("redis GET dim:smoke:", val)
	return nil
}

func testResizer(ctx context.Context, baseURL, image string) error {
	fmt.Println("Resizer metadata test")

	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(image, "/"))
	if err != nil {
		return fmt.Errorf("bad resizer URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.RawQuery = url.Values{"format": {"json"}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("http get metadata: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metadata status %d: %s", resp.StatusCode, string(b))
	}
	fmt.Println("metadata:", string(b))
	return nil
}

func publishInvalidation(brokers []string, topic string, paths []string) error {
	fmt.Println("Kafka invalidation test")

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Version = sarama.V2_1_0_0
	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return fmt.Errorf("producer create: %w", err)
	}
	defer func() { _ = prod.Close() }()

	ev := invalidation.Event{
		Version: 1,
		Op:      invalidation.OpUpdate,
		Paths:   paths,
		TS:      time.Now().UTC(),
		Source:  "smoke",
	}
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("event: %w", err)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	part, off, err := prod.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(paths[0]),
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	fmt.Printf("published invalidation for %d paths (partition=%d offset=%d)\n", len(paths), part, off)
	return nil
}

func main() {
	image := flag.String("image", "/sample.jpg", "image path used for the metadata check and the invalidation event")
	skipKafka := flag.Bool("skip-kafka", false, "do not publish an invalidation event")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	redisAddr := getenv("DIM_CACHE_REDIS_ADDR", "localhost:6379")
	resizer := getenv("RESIZER_URL", "http://localhost:8787")
	brokers := strings.Split(getenv("KAFKA_BROKERS", "localhost:9092"), ",")
	topic := getenv("KAFKA_TOPIC", "image-invalidation")

	if err := testRedis(ctx, redisAddr); err != nil {
		fmt.Println("Redis error:", err)
		os.Exit(1)
	}
	if err := testResizer(ctx, resizer, *image); err != nil {
		fmt.Println("Resizer error:", err)
		os.Exit(1)
	}
	if !*skipKafka {
		if err := publishInvalidation(brokers, topic, []string{*image}); err != nil {
			fmt.Println("Kafka error:", err)
			os.Exit(1)
		}
	}
	fmt.Println("All checks completed")
}
