package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rfidattend/internal/config"
	"rfidattend/internal/mailer"
	"rfidattend/internal/queue"
	"rfidattend/internal/store"
)

// Worker consumes notification messages and delivers the emails. Delivery
// is best-effort: a failed send is logged and dropped, never retried into
// the scan path.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	var mail mailer.Mailer
	if cfg.MailBackend == "sendgrid" && cfg.SendgridKey != "" {
		mail = mailer.NewSendgrid(cfg.SendgridKey, cfg.MailFrom, cfg.MailName)
		log.Println("mailer: sendgrid")
	} else {
		mail = mailer.NewConsole()
		log.Println("mailer: console")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != queue.TypeNotification {
			continue
		}

		var n mailer.Notification
		if err := json.Unmarshal(msg.Body, &n); err != nil {
			log.Printf("bad notification payload: %v", err)
			continue
		}
		if n.To == "" {
			continue
		}

		subject, body := n.Compose()
		if err := mail.Send(ctx, n.To, subject, body); err != nil {
			log.Printf("send %s to %s failed: %v", n.Kind, n.To, err)
			continue
		}
		log.Printf("sent %s notification to %s", n.Kind, n.To)
	}

	log.Println("worker stopped")
}
