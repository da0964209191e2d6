package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hanzhi-dmd/companion/internal/app"
	"github.com/hanzhi-dmd/companion/internal/config"
	"github.com/hanzhi-dmd/companion/internal/jobs"
	"github.com/hanzhi-dmd/companion/internal/logger"
)

const maxAttempts = 3

func retryDelay(attempt int) time.Duration {
	return time.Duration(1<<attempt) * 5 * time.Second
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log = log.With("component", "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("build app", "err", err)
	}
	defer a.Close()

	runner := jobs.NewRunner(a.JobsRepo, a.Registry, log)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal("rabbit dial", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("rabbit channel", "err", err)
	}
	defer ch.Close()

	if err := jobs.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		log.Fatal("queue declare", "err", err)
	}

	//  strict concurrency control
	concurrency := cfg.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal("qos", "err", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal("consume", "err", err)
	}

	log.Info("worker started", "queue", cfg.RabbitQueue, "concurrency", concurrency)

	// worker pool
	deliveries := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range deliveries {
				var m jobs.Message
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					log.Warn("bad message", "worker", workerID, "err", err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := runner.Handle(ctx, m.JobID); err != nil {
					log.Warn("job failed", "worker", workerID, "job", m.JobID, "attempt", m.Attempt, "cost", time.Since(start), "err", err)
					if m.Attempt+1 < maxAttempts && a.JobsRepo.Requeue(ctx, m.JobID) == nil &&
						jobs.Retry(ctx, ch, cfg.RabbitQueue, m, retryDelay(m.Attempt)) == nil {
						_ = d.Ack(false)
						continue
					}
					// out of attempts: dead-letter
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Warn("ack failed", "worker", workerID, "job", m.JobID, "err", err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			close(deliveries)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Warn("delivery channel closed")
				close(deliveries)
				wg.Wait()
				return
			}
			deliveries <- d
		}
	}
}
